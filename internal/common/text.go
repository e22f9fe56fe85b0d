package common

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// WordCount counts whitespace-delimited tokens in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// WrapHeadline collapses runs of whitespace and wraps s at width columns.
// A width <= 0 leaves the text on a single line.
func WrapHeadline(s string, width int) string {
	flat := strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return flat
	}
	return wordwrap.String(flat, width)
}
