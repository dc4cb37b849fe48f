package indexer

import (
	"strings"
	"unicode/utf8"
)

// LengthFunc measures text, in characters or in model tokens.
type LengthFunc func(string) int

// CharLen counts runes.
func CharLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Split partitions text into segments of at most maxLen under length.
//
// Consecutive non-blank lines form one atomic unit and every blank line is a
// unit of its own; units are never split, so a single unit longer than maxLen
// becomes an oversized segment. Units are packed greedily. A final segment
// shorter than maxLen/2 is merged into the one before it. Joining the result
// reproduces text exactly.
func Split(text string, maxLen int, length LengthFunc) []string {
	if length == nil {
		length = CharLen
	}

	var segments []string
	var current strings.Builder
	currentLen := 0
	for _, unit := range atomicUnits(text) {
		n := length(unit)
		if currentLen+n > maxLen && current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(unit)
		currentLen += n
	}

	if current.Len() > 0 {
		if 2*currentLen < maxLen && len(segments) > 0 {
			segments[len(segments)-1] += current.String()
		} else {
			segments = append(segments, current.String())
		}
	}
	return segments
}

// atomicUnits groups lines (line endings kept) into paragraph units and
// single blank-line units.
func atomicUnits(text string) []string {
	var units []string
	var para strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if strings.TrimSpace(line) != "" {
			para.WriteString(line)
			continue
		}
		if para.Len() > 0 {
			units = append(units, para.String())
			para.Reset()
		}
		units = append(units, line)
	}
	if para.Len() > 0 {
		units = append(units, para.String())
	}
	return units
}
