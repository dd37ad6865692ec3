package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"newlines collapsed", "line one\nline two", 40, "line one line two"},
		{"whitespace runs collapsed", "a   b\t\tc", 40, "a b c"},
		{"maxLen clamped to minimum", "abcdefgh", 1, "a..."},
		{"unicode not split", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateDescription(tt.input, tt.maxLen))
		})
	}
}
