package models

import "unicode/utf8"

const MaxStringLength = 255

// ShortenString truncates s to at most maxLen runes, replacing the tail
// with end when it does not fit.
func ShortenString(s string, maxLen int, end string) string {
	if utf8.RuneCountInString(s) < maxLen {
		return s
	}
	keep := maxLen - utf8.RuneCountInString(end)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + end
}

// Shorten truncates s to MaxStringLength with an ellipsis
func Shorten(s string) string {
	return ShortenString(s, MaxStringLength, "...")
}
