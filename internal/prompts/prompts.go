// Package prompts manages prompt packs: named markdown templates, with YAML
// frontmatter, that tell the analyzer what to look for and how to answer.
// Bundled packs cover the four analysis passes; packs in the user prompts
// directory shadow bundled ones of the same name.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/CosmoTheDev/pct/internal/ai"
	"github.com/CosmoTheDev/pct/models"
)

//go:embed defaults/*.md
var defaultsFS embed.FS

// SystemPrompt is sent with every analysis request.
const SystemPrompt = "You are an expert code reviewer and application security engineer. " +
	"Report only real, actionable issues in the code you are given. " +
	"Answer with a single JSON document and no surrounding prose."

// Pack is a parsed prompt pack.
type Pack struct {
	// Name matches the filename without .md.
	Name        string `yaml:"name"`
	Version     int    `yaml:"version"`
	Description string `yaml:"description"`
	// Pass decides the default finding type for items that omit one.
	// Empty means the pass the caller asked for.
	Pass string   `yaml:"pass"`
	Tags []string `yaml:"tags"`
	// Body is the text/template rendered into the user prompt.
	Body    string `yaml:"-"`
	Bundled bool   `yaml:"-"`

	tmpl *template.Template
}

// Input is the data a pack body is rendered with.
type Input struct {
	FilePath string
	Language string
	Pass     string
	Source   string
}

// Store resolves packs from a user directory on fs, then the bundled set.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore returns a Store reading user packs from dir on fsys. A nil fsys
// means the OS filesystem; an empty dir disables user packs.
func NewStore(fsys afero.Fs, dir string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys, dir: dir}
}

// Load returns the pack called name. User packs win over bundled ones.
func (s *Store) Load(name string) (*Pack, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("prompts: empty pack name")
	}

	if s.dir != "" {
		path := filepath.Join(s.dir, name+".md")
		data, err := afero.ReadFile(s.fs, path)
		if err == nil {
			p, err := parse(data, name)
			if err != nil {
				return nil, fmt.Errorf("prompts: parse %q: %w", path, err)
			}
			return p, nil
		}
	}

	data, err := defaultsFS.ReadFile("defaults/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("prompts: pack %q not found", name)
	}
	p, err := parse(data, name)
	if err != nil {
		return nil, fmt.Errorf("prompts: parse bundled %q: %w", name, err)
	}
	p.Bundled = true
	return p, nil
}

// ForPass loads the pack named after pass.
func (s *Store) ForPass(pass models.AnalysisPass) (*Pack, error) {
	return s.Load(pass.String())
}

// List returns every available pack sorted by name, with user packs
// shadowing bundled ones.
func (s *Store) List() ([]Pack, error) {
	byName := make(map[string]Pack)

	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("prompts: reading embedded defaults: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := defaultsFS.ReadFile("defaults/" + entry.Name())
		if err != nil {
			continue
		}
		p, err := parse(data, strings.TrimSuffix(entry.Name(), ".md"))
		if err != nil {
			slog.Warn("prompts: skipping malformed bundled pack", "file", entry.Name(), "error", err)
			continue
		}
		p.Bundled = true
		byName[p.Name] = *p
	}

	if s.dir != "" {
		_ = afero.Walk(s.fs, s.dir, func(path string, info fs.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(info.Name(), ".md") {
				return nil
			}
			data, err := afero.ReadFile(s.fs, path)
			if err != nil {
				return nil
			}
			p, err := parse(data, strings.TrimSuffix(info.Name(), ".md"))
			if err != nil {
				slog.Warn("prompts: skipping malformed user pack", "file", path, "error", err)
				return nil
			}
			byName[p.Name] = *p
			return nil
		})
	}

	out := make([]Pack, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Init creates the user prompts directory and copies any missing bundled
// packs into it. Existing files are left alone.
func (s *Store) Init() error {
	if s.dir == "" {
		return fmt.Errorf("prompts: no prompts directory configured")
	}
	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("prompts: create dir %s: %w", s.dir, err)
	}

	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return fmt.Errorf("prompts: reading embedded defaults: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		dest := filepath.Join(s.dir, entry.Name())
		if ok, _ := afero.Exists(s.fs, dest); ok {
			continue
		}
		data, err := defaultsFS.ReadFile("defaults/" + entry.Name())
		if err != nil {
			continue
		}
		if err := afero.WriteFile(s.fs, dest, data, 0o640); err != nil {
			slog.Warn("prompts: failed to write default pack", "file", dest, "error", err)
		}
	}
	return nil
}

// EffectivePass is the pack's own pass when it declares one, else requested.
func (p *Pack) EffectivePass(requested models.AnalysisPass) models.AnalysisPass {
	if p.Pass == "" {
		return requested
	}
	if pass, ok := models.ParseAnalysisPass(p.Pass); ok {
		return pass
	}
	return requested
}

// Render fills the pack body for one unit of source.
func (p *Pack) Render(in Input) (ai.Request, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, in); err != nil {
		return ai.Request{}, fmt.Errorf("prompts: render %q: %w", p.Name, err)
	}
	return ai.Request{
		System:   SystemPrompt,
		Prompt:   buf.String(),
		FilePath: in.FilePath,
		Language: in.Language,
	}, nil
}

// parse extracts YAML frontmatter and the template body from a pack file.
func parse(data []byte, fallbackName string) (*Pack, error) {
	const delim = "---"

	data = bytes.TrimLeft(data, " \t\n\r")

	var p Pack
	if !bytes.HasPrefix(data, []byte(delim)) {
		p.Body = strings.TrimSpace(string(data))
	} else {
		rest := bytes.TrimPrefix(data, []byte(delim))
		idx := bytes.Index(rest, []byte("\n"+delim))
		if idx < 0 {
			return nil, fmt.Errorf("unterminated YAML frontmatter (missing closing ---)")
		}
		if err := yaml.Unmarshal(rest[:idx], &p); err != nil {
			return nil, fmt.Errorf("invalid YAML frontmatter: %w", err)
		}
		p.Body = strings.TrimSpace(string(rest[idx+len("\n"+delim):]))
	}

	if p.Name == "" {
		p.Name = fallbackName
	}
	if p.Body == "" {
		return nil, fmt.Errorf("empty prompt body")
	}
	if p.Pass != "" {
		if _, ok := models.ParseAnalysisPass(p.Pass); !ok {
			return nil, fmt.Errorf("unknown pass %q", p.Pass)
		}
	}
	tmpl, err := template.New(p.Name).Option("missingkey=error").Parse(p.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	p.tmpl = tmpl
	return &p, nil
}
