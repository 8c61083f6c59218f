package source

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, body := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(body), 0o644))
	}
	return fs
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"a.py":       "python",
		"b.TSX":      "typescript",
		"c.hpp":      "cpp",
		"d.zsh":      "bash",
		"e.yml":      "yaml",
		"main.go":    "go",
		"Query.sql":  "sql",
		"index.html": "html",
	}
	for p, want := range cases {
		got, ok := DetectLanguage(p)
		assert.True(t, ok, p)
		assert.Equal(t, want, got, p)
	}
	_, ok := DetectLanguage("README.md")
	assert.False(t, ok)
}

func TestLanguagesUnique(t *testing.T) {
	langs := Languages()
	assert.Contains(t, langs, "python")
	assert.Contains(t, langs, "csharp")
	seen := map[string]bool{}
	for _, l := range langs {
		assert.False(t, seen[l], "duplicate %s", l)
		seen[l] = true
	}
	assert.Equal(t, []string{".cc", ".cpp", ".cxx", ".hpp"}, Extensions("cpp"))
}

func TestDiscoverSkipsIgnored(t *testing.T) {
	fs := seed(t, map[string]string{
		"/repo/app/main.py":               "print(1)\n",
		"/repo/app/util.js":               "x()\n",
		"/repo/app/vendor.min.js":         "x()",
		"/repo/app/cache.pyc":             "bin",
		"/repo/node_modules/lib/index.js": "x()",
		"/repo/.git/config.json":          "{}",
		"/repo/build/out.go":              "package out",
		"/repo/README.md":                 "# hi",
		"/repo/big.py":                    string(make([]byte, 3*1024)),
	})
	d := NewDiscoverer(fs, 2, nil)

	files, err := d.Discover("/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo/app/main.py", "/repo/app/util.js"}, files)
}

func TestDiscoverSingleFile(t *testing.T) {
	fs := seed(t, map[string]string{"/x/a.rb": "puts 1", "/x/notes.txt": "hi"})
	d := NewDiscoverer(fs, 100, nil)

	files, err := d.Discover("/x/a.rb")
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/a.rb"}, files)

	files, err = d.Discover("/x/notes.txt")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = d.Discover("/missing")
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestReadRelativePathAndLines(t *testing.T) {
	fs := seed(t, map[string]string{"/repo/pkg/db.py": "import os\r\nq = 1\nprint(q)"})
	f, err := NewDiscoverer(fs, 100, nil).Read("/repo", "/repo/pkg/db.py")
	require.NoError(t, err)
	assert.Equal(t, "pkg/db.py", f.Path)
	assert.Equal(t, "python", f.Language)
	assert.Equal(t, "utf-8", f.Encoding)
	assert.Equal(t, 3, f.Lines)
}

func TestReadTooLarge(t *testing.T) {
	fs := seed(t, map[string]string{"/a.go": string(make([]byte, 2048))})
	_, err := NewDiscoverer(fs, 1, nil).Read("", "/a.go")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecode(t *testing.T) {
	text, enc, err := Decode([]byte{0xEF, 0xBB, 0xBF, 'h', 'i'})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, "utf-8", enc)

	text, enc, err = Decode([]byte{0xFF, 0xFE, 'h', 0, 'i', 0})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Equal(t, "utf-16le", enc)

	text, enc, err = Decode([]byte{0xFE, 0xFF, 0, 'o', 0, 'k'})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "utf-16be", enc)

	text, enc, err = Decode([]byte{'c', 'a', 'f', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, "café", text)
	assert.Equal(t, "windows-1252", enc)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 1, CountLines("a\n"))
	assert.Equal(t, 2, CountLines("a\r\nb"))
	assert.Equal(t, 3, CountLines("\n\n\n"))
}
