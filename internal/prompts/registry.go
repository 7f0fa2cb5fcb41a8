package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template is a named system/user prompt pair with {placeholder} slots.
type Template struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	User        string `yaml:"user"`
}

// Validate checks required fields.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.User == "" {
		return fmt.Errorf("template %s: user prompt is required", t.Name)
	}
	return nil
}

// Render substitutes {key} placeholders in the user prompt. Unknown
// placeholders are left intact so a missing variable shows up verbatim in
// the rendered prompt instead of failing silently.
func (t *Template) Render(vars map[string]string) string {
	return substitute(t.User, vars)
}

// RenderSystem substitutes placeholders in the system prompt.
func (t *Template) RenderSystem(vars map[string]string) string {
	return substitute(t.System, vars)
}

func substitute(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Registry is a read-only catalog of prompt templates keyed by name. All
// templates load at startup; a missing template afterwards is a programming
// error, not a runtime condition.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		templates: make(map[string]*Template),
		logger:    logger,
	}
}

// LoadDirectory loads every .yaml file in dir as one template.
func (r *Registry) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read prompt directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			return err
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no prompt templates found in %s", dir)
	}

	r.logger.Info("Prompt templates loaded",
		zap.String("dir", dir),
		zap.Int("count", loaded),
	)
	return nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template %s: %w", path, err)
	}

	var tmpl Template
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return fmt.Errorf("parse template %s: %w", path, err)
	}
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("invalid template %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[tmpl.Name]; exists {
		return fmt.Errorf("duplicate template name %s in %s", tmpl.Name, path)
	}
	r.templates[tmpl.Name] = &tmpl
	return nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt template %s not found", name)
	}
	return tmpl, nil
}

// MustHave verifies that every named template is present. Used at startup so
// a missing prompt file fails the process instead of the first request.
func (r *Registry) MustHave(names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, name := range names {
		if _, ok := r.templates[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing prompt templates: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Names lists loaded template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
