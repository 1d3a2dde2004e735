package chunking

import (
	"regexp"
	"strings"
	"unicode"
)

// paragraphBreak matches a blank line, including lines holding only whitespace.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Segment splits text into whitespace-normalized units.
//
// A unit ends at '.', '!' or '?' (possibly repeated and followed by closing
// quotes or brackets) when the next rune is whitespace or the end of text,
// and at every paragraph break. Single newlines are ordinary whitespace.
func Segment(text string) []string {
	var units []string
	for _, para := range paragraphBreak.Split(text, -1) {
		units = appendSentences(units, para)
	}
	return units
}

func appendSentences(units []string, para string) []string {
	rs := []rune(para)
	start := 0
	for i := 0; i < len(rs); i++ {
		if !isTerminal(rs[i]) {
			continue
		}
		j := i + 1
		for j < len(rs) && isTerminal(rs[j]) {
			j++
		}
		for j < len(rs) && isCloser(rs[j]) {
			j++
		}
		if j == len(rs) || unicode.IsSpace(rs[j]) {
			units = appendUnit(units, string(rs[start:j]))
			start = j
		}
		i = j - 1
	}
	return appendUnit(units, string(rs[start:]))
}

func appendUnit(units []string, s string) []string {
	if u := normalize(s); u != "" {
		units = append(units, u)
	}
	return units
}

// normalize collapses whitespace runs into single spaces and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}
