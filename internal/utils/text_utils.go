package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// TruncationMarker is appended to text cut by TruncateText
const TruncationMarker = "\n[... Content truncated due to size limits ...]"

// TextProcessor provides utilities for processing untrusted text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText truncates text to at most maxChars characters.
// Multi-byte characters are never split.
func (tp *TextProcessor) TruncateText(text string, maxChars int) string {
	// If no limit or text is already within limits, return as is
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	cut := 0
	for i := range text {
		if maxChars == 0 {
			cut = i
			break
		}
		maxChars--
	}
	truncated := text[:cut]

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)))

	return truncated + TruncationMarker
}

// SanitizeUTF8 replaces ill-formed UTF-8 sequences with the replacement character
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized, _, err := transform.String(runes.ReplaceIllFormed(), text)
	if err != nil {
		tp.logger.Debug("Failed to sanitize text", zap.Error(err))
		return strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return sanitized
}

// StripControl removes control characters except newlines and tabs.
// Carriage returns are removed so CRLF line endings become LF.
func (tp *TextProcessor) StripControl(text string) string {
	stripped, _, err := transform.String(runes.Remove(runes.Predicate(func(r rune) bool {
		return unicode.IsControl(r) && r != '\n' && r != '\t'
	})), tp.SanitizeUTF8(text))
	if err != nil {
		return ""
	}
	return stripped
}

// SingleLine replaces every control character, newlines included, with a
// space so the value can never start a new header or template line.
func (tp *TextProcessor) SingleLine(text string) string {
	flattened, _, err := transform.String(runes.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}), tp.SanitizeUTF8(text))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(flattened)
}

// ProcessText strips control characters and truncates in one operation
func (tp *TextProcessor) ProcessText(text string, maxChars int) string {
	return tp.TruncateText(tp.StripControl(text), maxChars)
}
