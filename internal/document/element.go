package document

import "strings"

// Category is the closed set of element kinds a partitioner can emit.
type Category int

const (
	CategoryOther Category = iota
	CategoryTitle
	CategoryNarrativeText
	CategoryUncategorizedText
	CategoryTable
	CategoryImage
)

func (c Category) String() string {
	switch c {
	case CategoryTitle:
		return "Title"
	case CategoryNarrativeText:
		return "NarrativeText"
	case CategoryUncategorizedText:
		return "UncategorizedText"
	case CategoryTable:
		return "Table"
	case CategoryImage:
		return "Image"
	default:
		return "Other"
	}
}

// IsTextLike reports whether elements of this category contribute their
// text verbatim to a section body.
func (c Category) IsTextLike() bool {
	switch c {
	case CategoryTitle, CategoryNarrativeText, CategoryUncategorizedText:
		return true
	}
	return false
}

// ParseCategory maps a partitioner type tag onto a Category. Unknown tags
// (headers, footers, page breaks, ...) become CategoryOther.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title":
		return CategoryTitle
	case "narrativetext", "narrative_text":
		return CategoryNarrativeText
	case "uncategorizedtext", "uncategorized_text", "listitem", "list_item":
		return CategoryUncategorizedText
	case "table":
		return CategoryTable
	case "image", "figure":
		return CategoryImage
	}
	return CategoryOther
}

// Element is one atomic unit of a partitioned document.
type Element struct {
	Category  Category
	Text      string
	Page      int    // 1-based; 0 when unknown
	TableHTML string // only for CategoryTable
	ImagePath string // only for CategoryImage
}

// HasPage reports whether the element carries a known page number.
func (e Element) HasPage() bool {
	return e.Page >= 1
}

// IsBlank reports whether the element has no usable text.
func (e Element) IsBlank() bool {
	return strings.TrimSpace(e.Text) == ""
}
