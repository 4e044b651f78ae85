package rag

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxQuestionLen is the longest accepted question, in characters.
const MaxQuestionLen = 2000

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question exceeds 2000 characters")
)

// ValidateQuestion trims q and checks it is usable as a query.
// The trimmed question is returned on success.
func ValidateQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	if utf8.RuneCountInString(q) > MaxQuestionLen {
		return "", ErrQuestionTooLong
	}
	return q, nil
}

// IsExitCommand reports whether a chat line asks to leave the session.
func IsExitCommand(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "sair")
}
