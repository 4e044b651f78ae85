package document

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// SectionMarkerPrefix opens every section body.
const SectionMarkerPrefix = "START OF SECTION: "

// ErrSectionSealed is returned when mutating a sealed section.
var ErrSectionSealed = errors.New("section is sealed")

// Section is a contiguous run of document content between two detected
// headings. It is mutable while open and frozen once Seal is called.
type Section struct {
	Title string

	body   strings.Builder
	pages  map[int]struct{}
	sealed bool
}

// NewSection opens a section for the given heading. The body is seeded with
// the section marker; page is added when known.
func NewSection(title string, page int) *Section {
	s := &Section{
		Title: strings.TrimSpace(title),
		pages: make(map[int]struct{}),
	}
	s.body.WriteString(SectionMarkerPrefix)
	s.body.WriteString(s.Title)
	s.AddPage(page)
	return s
}

// Append adds a block of content to the body.
func (s *Section) Append(block string) error {
	if s.sealed {
		return ErrSectionSealed
	}
	s.body.WriteString("\n")
	s.body.WriteString(block)
	return nil
}

// AddPage records that the section touches page. Unknown pages are ignored.
func (s *Section) AddPage(page int) {
	if s.sealed || page < 1 {
		return
	}
	s.pages[page] = struct{}{}
}

// Seal freezes the section.
func (s *Section) Seal() {
	s.sealed = true
}

// Sealed reports whether the section has been sealed.
func (s *Section) Sealed() bool {
	return s.sealed
}

// Body returns the accumulated body text.
func (s *Section) Body() string {
	return s.body.String()
}

// Pages returns the sorted page numbers the section touches.
func (s *Section) Pages() []int {
	out := make([]int, 0, len(s.pages))
	for p := range s.pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// PagesString renders the pages as a comma-joined list, the form persisted
// in index metadata.
func (s *Section) PagesString() string {
	return JoinPages(s.Pages())
}

// JoinPages renders pages as "3,4,7".
func JoinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
