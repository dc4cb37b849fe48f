package indexer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSplitIsLossless(t *testing.T) {
	inputs := []string{
		"",
		"one line without newline",
		"a\nb\n\nc\n",
		"\n\n\nleading blanks\n",
		"para one\nstill one\n\npara two\n\n\npara three\r\nwith crlf\r\n",
		strings.Repeat("word word word\n", 40) + "\n" + strings.Repeat("x\n\n", 30),
	}
	for _, in := range inputs {
		for _, maxLen := range []int{1, 5, 20, 100, 10000} {
			segments := Split(in, maxLen, CharLen)
			if got := strings.Join(segments, ""); got != in {
				t.Errorf("Split(%q, %d) not lossless: got %q", in, maxLen, got)
			}
		}
	}
}

func TestSplitRespectsBudget(t *testing.T) {
	text := "aaaa\nbbbb\n\ncccc\n\ndddd\neeee\n\nffff\n"
	segments := Split(text, 12, CharLen)

	units := atomicUnits(text)
	// the last segment may carry a merged short tail
	for i, seg := range segments[:len(segments)-1] {
		if CharLen(seg) <= 12 {
			continue
		}
		// only a lone oversized unit may exceed the budget
		isUnit := false
		for _, u := range units {
			if u == seg {
				isUnit = true
			}
		}
		assert.True(t, isUnit, "segment %d exceeds budget: %q", i, seg)
	}
}

func TestSplitNeverBreaksParagraph(t *testing.T) {
	long := strings.Repeat("x", 50) + "\n" + strings.Repeat("y", 50) + "\n"
	text := "short\n\n" + long + "\nend of document here\n"

	segments := Split(text, 30, CharLen)
	found := false
	for _, seg := range segments {
		if strings.Contains(seg, long) {
			found = true
		}
	}
	assert.True(t, found, "oversized paragraph was split: %q", segments)
}

func TestSplitMergesShortTail(t *testing.T) {
	text := "0123456789\n\n0123456789\n\nab\n"
	segments := Split(text, 12, CharLen)

	want := []string{"0123456789\n\n", "0123456789\n\nab\n"}
	if diff := cmp.Diff(want, segments); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitKeepsLongTail(t *testing.T) {
	text := "0123456789\n\n0123456789\n"
	segments := Split(text, 12, CharLen)

	want := []string{"0123456789\n\n", "0123456789\n"}
	if diff := cmp.Diff(want, segments); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitSingleShortSegmentStays(t *testing.T) {
	assert.Equal(t, []string{"hi\n"}, Split("hi\n", 100, CharLen))
	assert.Empty(t, Split("", 100, CharLen))
}

func TestSplitWithTokenLength(t *testing.T) {
	words := func(s string) int { return len(strings.Fields(s)) }
	text := "a b c\n\nd e f\n\ng h i\n"

	segments := Split(text, 4, words)
	assert.Equal(t, text, strings.Join(segments, ""))
	assert.Len(t, segments, 3)
}
