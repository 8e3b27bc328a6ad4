package langhint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForFile(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"main.py", "Python"},
		{"src/server.go", "Go"},
		{"Widget.TSX", "TypeScript"},
		{"legacy.c", "C"},
		{"README", ""},
		{"archive.tar.gz", ""},
		{"noext", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ForFile(tc.name), "file %q", tc.name)
	}
}
