package commands

import (
	"slices"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"list", []string{"list"}},
		{"register  alice.wav\talice", []string{"register", "alice.wav", "alice"}},
		{`register "my clip.wav" bob`, []string{"register", "my clip.wav", "bob"}},
		{`identify 'a b.mp3'`, []string{"identify", "a b.mp3"}},
		{`delete ""`, []string{"delete", ""}},
		{`x a"b c"d`, []string{"x", "ab cd"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Errorf("splitArgs(%q): %v", tt.line, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("splitArgs(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSplitArgsUnterminated(t *testing.T) {
	if _, err := splitArgs(`register "oops`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}
