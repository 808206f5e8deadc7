package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFinalText tests projecting normalized predictions back onto raw text.
func TestFinalText(t *testing.T) {
	tests := []struct {
		name      string
		predText  string
		origText  string
		lowerCase bool
		want      string
	}{
		{
			name:      "strips possessive",
			predText:  "steve smith",
			origText:  "Steve Smith's",
			lowerCase: true,
			want:      "Steve Smith",
		},
		{
			name:      "exact match",
			predText:  "little lamb",
			origText:  "little lamb",
			lowerCase: false,
			want:      "little lamb",
		},
		{
			name:      "recovers original casing",
			predText:  "new york",
			origText:  "New York",
			lowerCase: true,
			want:      "New York",
		},
		{
			name:      "split punctuation realigned",
			predText:  "1895 - 1943",
			origText:  "(1895-1943).",
			lowerCase: false,
			want:      "1895-1943",
		},
		{
			name:      "prediction not found returns original",
			predText:  "goat",
			origText:  "little lamb",
			lowerCase: false,
			want:      "little lamb",
		},
		{
			name:      "case mismatch without folding returns original",
			predText:  "steve smith",
			origText:  "Steve Smith's",
			lowerCase: false,
			want:      "Steve Smith's",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, FinalText(test.predText, test.origText, test.lowerCase))
		})
	}
}

// TestFinalTextAlignmentFallback tests that an unalignable pair degrades to
// the original text instead of failing.
func TestFinalTextAlignmentFallback(t *testing.T) {
	// The control character is dropped by re-tokenization, so the stripped
	// forms have different lengths and the alignment is abandoned.
	orig := "little\x01 lamb"
	assert.Equal(t, orig, FinalText("little lamb", orig, false))
}
