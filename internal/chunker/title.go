package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultTitlePattern matches a dotted numeric heading ("12.3.4 ") or an
// "APPENDIX <letter>" heading.
const DefaultTitlePattern = `(?i)^(\d+(\.\d+)*\.?\s+\S|APPENDIX\s+[A-Z]\b)`

// DefaultTitleMaxLen is the length ceiling below which a matching text is a
// heading. Longer numeric-prefixed text is body prose.
const DefaultTitleMaxLen = 150

// TitleDetector decides whether an element's text opens a new section.
type TitleDetector struct {
	pattern *regexp.Regexp
	maxLen  int
}

// NewTitleDetector compiles pattern; an empty pattern selects the default.
func NewTitleDetector(pattern string, maxLen int) (*TitleDetector, error) {
	if pattern == "" {
		pattern = DefaultTitlePattern
	}
	if maxLen <= 0 {
		maxLen = DefaultTitleMaxLen
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile title pattern: %w", err)
	}
	return &TitleDetector{pattern: re, maxLen: maxLen}, nil
}

// IsTitle reports whether text is a section heading.
func (d *TitleDetector) IsTitle(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) >= d.maxLen {
		return false
	}
	return d.pattern.MatchString(text)
}
