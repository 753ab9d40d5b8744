package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRetrievedChunkPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{
			name: "short text unchanged",
			text: "fits entirely",
			n:    50,
			want: "fits entirely",
		},
		{
			name: "exact length unchanged",
			text: "exact",
			n:    5,
			want: "exact",
		},
		{
			name: "long text truncated with ellipsis",
			text: "one two three four",
			n:    7,
			want: "one two...",
		},
		{
			name: "cut backs off to a rune boundary",
			// "héllo": the é is two bytes (0xC3 0xA9) starting at
			// byte 1, so a byte cut at 2 would split it.
			text: "héllo world",
			n:    2,
			want: "h...",
		},
		{
			name: "multi-byte text stays valid",
			text: strings.Repeat("日本語", 10),
			n:    10,
			want: "日本語...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := RetrievedChunk{Chunk: Chunk{Text: tt.text}}
			got := rc.Preview(tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
