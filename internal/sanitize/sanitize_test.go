package sanitize_test

import (
	"testing"

	"github.com/edgard/arkivobot/internal/sanitize"
)

func TestPlain(t *testing.T) {
	t.Parallel()

	n := sanitize.NewNormalizer()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text unchanged",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "bold markdown stripped",
			input:    "this is **important** news",
			expected: "this is important news",
		},
		{
			name:     "inline code stripped",
			input:    "run `go version` first",
			expected: "run go version first",
		},
		{
			name:     "link keeps label",
			input:    "see [the docs](https://example.com) for details",
			expected: "see the docs for details",
		},
		{
			name:     "html tags stripped",
			input:    "a <b>bold</b> move",
			expected: "a bold move",
		},
		{
			name:     "heading stripped",
			input:    "# Title\n\nbody text",
			expected: "Title\n\nbody text",
		},
		{
			name:     "entities unescaped",
			input:    "salt &amp; pepper",
			expected: "salt & pepper",
		},
		{
			name:     "blank runs collapsed",
			input:    "first\n\n\n\nsecond",
			expected: "first\n\nsecond",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := n.Plain(tc.input); got != tc.expected {
				t.Errorf("Plain(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
