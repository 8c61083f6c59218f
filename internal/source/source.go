// Package source finds analyzable files under a path and reads them into
// text the analyzer can consume.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrTooLarge is returned by Read for files above the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

var languageByExt = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".rs":    "rust",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "bash",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".sql":   "sql",
}

var ignoredDirs = map[string]bool{
	".git":          true,
	".svn":          true,
	".hg":           true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".env":          true,
	"dist":          true,
	"build":         true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".idea":         true,
	".vscode":       true,
}

var ignoredSuffixes = []string{".pyc", ".pyo", ".min.js", ".min.css"}

// DetectLanguage maps a file extension to a language name.
func DetectLanguage(p string) (string, bool) {
	lang, ok := languageByExt[strings.ToLower(filepath.Ext(p))]
	return lang, ok
}

// Languages returns the supported language names, sorted and unique.
func Languages() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(languageByExt))
	for _, lang := range languageByExt {
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}

// Extensions returns the extensions mapped to lang, sorted.
func Extensions(lang string) []string {
	var out []string
	for ext, l := range languageByExt {
		if l == lang {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// File is one unit of source ready for analysis.
type File struct {
	// Path is slash-separated and relative to the discovery root when the
	// root is a directory.
	Path     string
	Language string
	Content  string
	Encoding string
	Size     int64
	Lines    int
}

// Discoverer walks a filesystem for supported, non-ignored files.
type Discoverer struct {
	fs       afero.Fs
	maxBytes int64
	logger   *slog.Logger
}

// NewDiscoverer returns a Discoverer over fsys. maxFileSizeKB <= 0 disables
// the size limit.
func NewDiscoverer(fsys afero.Fs, maxFileSizeKB int, logger *slog.Logger) *Discoverer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{fs: fsys, maxBytes: int64(maxFileSizeKB) * 1024, logger: logger}
}

// Discover lists the files under root that should be analyzed, in lexical
// walk order. A root that is itself a file yields at most that file.
func (d *Discoverer) Discover(root string) ([]string, error) {
	info, err := d.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		if d.accept(root, info) {
			return []string{root}, nil
		}
		return []string{}, nil
	}

	files := []string{}
	err = afero.Walk(d.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			d.logger.Warn("source: walk error", "path", p, "error", err)
			return nil
		}
		if info.IsDir() {
			if p != root && ignoredDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.accept(p, info) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walking %s: %w", root, err)
	}
	return files, nil
}

func (d *Discoverer) accept(p string, info fs.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	name := strings.ToLower(info.Name())
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	if _, ok := DetectLanguage(p); !ok {
		return false
	}
	if d.maxBytes > 0 && info.Size() > d.maxBytes {
		d.logger.Warn("source: file too large, skipping",
			"file", p,
			"size_kb", fmt.Sprintf("%.1f", float64(info.Size())/1024),
			"max_kb", d.maxBytes/1024,
		)
		return false
	}
	return true
}

// Read loads p and decodes it to UTF-8 text. root is used to make the
// reported path relative.
func (d *Discoverer) Read(root, p string) (File, error) {
	lang, ok := DetectLanguage(p)
	if !ok {
		return File{}, fmt.Errorf("source: unsupported file type: %s", p)
	}
	info, err := d.fs.Stat(p)
	if err != nil {
		return File{}, fmt.Errorf("source: %w", err)
	}
	if d.maxBytes > 0 && info.Size() > d.maxBytes {
		return File{}, fmt.Errorf("source: %s: %w", p, ErrTooLarge)
	}
	raw, err := afero.ReadFile(d.fs, p)
	if err != nil {
		return File{}, fmt.Errorf("source: reading %s: %w", p, err)
	}
	text, enc, err := Decode(raw)
	if err != nil {
		return File{}, fmt.Errorf("source: decoding %s: %w", p, err)
	}
	return File{
		Path:     relPath(root, p),
		Language: lang,
		Content:  text,
		Encoding: enc,
		Size:     int64(len(raw)),
		Lines:    CountLines(text),
	}, nil
}

// Decode converts raw bytes to UTF-8. A UTF-16 byte order mark selects
// UTF-16; valid UTF-8 is used as-is (minus any BOM); anything else is read
// as Windows-1252, which maps every byte.
func Decode(raw []byte) (text, enc string, err error) {
	var dec *encoding.Decoder
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		dec, enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), "utf-16le"
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		dec, enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), "utf-16be"
	case utf8.Valid(raw):
		return string(bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})), "utf-8", nil
	default:
		dec, enc = charmap.Windows1252.NewDecoder(), "windows-1252"
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", "", err
	}
	return string(out), enc, nil
}

// CountLines counts lines the way an editor does: a trailing newline does
// not start a new line and empty text has none.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func relPath(root, p string) string {
	if root != "" && root != p {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return path.Clean(filepath.ToSlash(rel))
		}
	}
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "./")
}

// IsNotExist reports whether err means the discovery root is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
