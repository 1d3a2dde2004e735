package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "terminal punctuation",
			text: "First sentence. Second one! Third?",
			want: []string{"First sentence.", "Second one!", "Third?"},
		},
		{
			name: "closing quote stays with sentence",
			text: `He said "stop." Then left.`,
			want: []string{`He said "stop."`, "Then left."},
		},
		{
			name: "closing bracket stays with sentence",
			text: "(See this.) Next.",
			want: []string{"(See this.)", "Next."},
		},
		{
			name: "decimal point is not a boundary",
			text: "Pi is 3.14 today. Yes",
			want: []string{"Pi is 3.14 today.", "Yes"},
		},
		{
			name: "repeated terminals",
			text: "Wait... what?! Done",
			want: []string{"Wait...", "what?!", "Done"},
		},
		{
			name: "paragraph breaks and single newlines",
			text: "Line one\nline two.\n\nNew para without stop\n\n\n  \nLast",
			want: []string{"Line one line two.", "New para without stop", "Last"},
		},
		{
			name: "whitespace collapsed",
			text: "  lots   of\t\tspace .  ",
			want: []string{"lots of space ."},
		},
		{
			name: "blank",
			text: " \n\t ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segment(tt.text))
		})
	}
}
