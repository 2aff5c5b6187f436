package blobkeep_test

import (
	"strings"
	"testing"

	"github.com/sagarc03/blobkeep"
	"github.com/stretchr/testify/assert"
)

func TestIsValidKey(t *testing.T) {
	tt := []struct {
		Name string
		Key  string
		Want bool
	}{
		// Basics
		{Name: "empty key", Key: "", Want: false},
		{Name: "single letter", Key: "a", Want: true},
		{Name: "single digit", Key: "7", Want: true},
		{Name: "max length", Key: strings.Repeat("k", blobkeep.MaxKeyLength), Want: true},
		{Name: "over max length", Key: strings.Repeat("k", blobkeep.MaxKeyLength+1), Want: false},

		// Leading character
		{Name: "leading dot", Key: ".hidden", Want: false},
		{Name: "leading dash", Key: "-flag", Want: false},
		{Name: "leading underscore", Key: "_private", Want: false},
		{Name: "temp file name", Key: ".t0b1c2", Want: false},

		// Traversal
		{Name: "double dots", Key: "..", Want: false},
		{Name: "parent traversal", Key: "../etc/passwd", Want: false},
		{Name: "double dots in name", Key: "a..b", Want: false},
		{Name: "double dots at end", Key: "name..", Want: false},

		// Separators
		{Name: "slash", Key: "a/b", Want: false},
		{Name: "backslash", Key: `a\b`, Want: false},
		{Name: "absolute path", Key: "/etc/passwd", Want: false},

		// Forbidden characters
		{Name: "contains space", Key: "some file", Want: false},
		{Name: "contains tab", Key: "some\tfile", Want: false},
		{Name: "contains newline", Key: "some\nfile", Want: false},
		{Name: "contains hash", Key: "file#frag", Want: false},
		{Name: "contains question mark", Key: "file?x=1", Want: false},
		{Name: "contains percent", Key: "a%2eb", Want: false},
		{Name: "contains colon", Key: "c:file", Want: false},
		{Name: "non ascii", Key: "привет", Want: false},

		// Control chars / NUL
		{Name: "contains NUL", Key: "some\x00file", Want: false},
		{Name: "contains DEL", Key: "some\x7ffile", Want: false},

		// Valid examples
		{Name: "simple valid", Key: "report.pdf", Want: true},
		{Name: "single dot inside", Key: "a.b.c", Want: true},
		{Name: "underscores and dashes valid", Key: "file_name-v2.tar.gz", Want: true},
		{Name: "mixed case", Key: "README.md", Want: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got := blobkeep.IsValidKey(tc.Key)
			if got != tc.Want {
				expected := "valid"
				if !tc.Want {
					expected = "invalid"
				}
				t.Errorf("expected key %q to be %s, got %v", tc.Key, expected, got)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		assert.NoError(t, blobkeep.ValidateKey("hello.txt"))
	})

	t.Run("empty key", func(t *testing.T) {
		err := blobkeep.ValidateKey("")
		assert.ErrorIs(t, err, blobkeep.ErrInvalidKey)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("traversal", func(t *testing.T) {
		err := blobkeep.ValidateKey("../etc/passwd")
		assert.ErrorIs(t, err, blobkeep.ErrInvalidKey)
	})
}
