// Package prompt loads the instruction templates sent to the query model.
package prompt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// maxTemplateOutput caps what a template renders on its own, without the
// transcript. Transcripts are never truncated.
const maxTemplateOutput = 64 * 1024

// Template is a named instruction prompt. Instructions is a text/template
// with a single field, {{.Transcript}}.
type Template struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	Instructions string `yaml:"instructions" json:"-"`

	tmpl *template.Template
}

type promptCtx struct {
	Transcript string
}

func (t *Template) compile() error {
	tmpl, err := template.New(t.Name).Parse(t.Instructions)
	if err != nil {
		return fmt.Errorf("parse template %q: %w", t.Name, err)
	}
	lw := &limitWriter{w: io.Discard, n: maxTemplateOutput}
	if err := tmpl.Execute(lw, promptCtx{}); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	t.tmpl = tmpl
	return nil
}

// Render executes the template with transcript embedded verbatim.
func (t *Template) Render(transcript string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, promptCtx{Transcript: transcript}); err != nil {
		return "", fmt.Errorf("render template %q: %w", t.Name, err)
	}
	return buf.String(), nil
}

// limitWriter caps output from template.Execute.
type limitWriter struct {
	w       io.Writer
	n       int64
	written int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.written+int64(len(p)) > lw.n {
		allowed := lw.n - lw.written
		if allowed > 0 {
			n, err := lw.w.Write(p[:allowed])
			lw.written += int64(n)
			if err != nil {
				return n, err
			}
		}
		return 0, fmt.Errorf("output exceeds %d bytes", lw.n)
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}

// Loader holds the built-in templates plus any loaded from a directory.
type Loader struct {
	dir      string
	selected string

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewLoader creates a loader. dir may be empty, in which case only the
// built-in templates exist. selected names the template Current returns.
func NewLoader(dir, selected string) *Loader {
	if selected == "" {
		selected = DefaultName
	}
	l := &Loader{dir: dir, selected: selected}
	l.templates = mustBuiltins()
	return l
}

func mustBuiltins() map[string]*Template {
	out := make(map[string]*Template)
	for _, t := range builtins() {
		t := t
		if err := t.compile(); err != nil {
			panic(err)
		}
		out[t.Name] = &t
	}
	return out
}

// LoadAll reads every .yaml and .yml file from the directory. Files replace
// built-ins of the same name.
func (l *Loader) LoadAll() (map[string]*Template, error) {
	result := mustBuiltins()
	if l.dir == "" {
		return result, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read prompt dir %q: %w", l.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		t, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		result[t.Name] = t
	}

	l.mu.Lock()
	l.templates = result
	l.mu.Unlock()

	return result, nil
}

func loadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if t.Name == "" {
		base := filepath.Base(path)
		t.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	if t.Instructions == "" {
		return nil, fmt.Errorf("template %q has no instructions", t.Name)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns a template by name.
func (l *Loader) Get(name string) (*Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	return t, ok
}

// Current returns the selected template, or the default when the selected
// one does not exist.
func (l *Loader) Current() *Template {
	if t, ok := l.Get(l.selected); ok {
		return t
	}
	t, _ := l.Get(DefaultName)
	return t
}

// List returns all templates ordered by name.
func (l *Loader) List() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WatchAndReload watches the directory and reloads on change. It blocks
// until ctx is done.
func (l *Loader) WatchAndReload(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				ext := filepath.Ext(event.Name)
				if ext == ".yaml" || ext == ".yml" {
					if _, err := l.LoadAll(); err != nil {
						slog.WarnContext(ctx, "prompt reload failed", slog.String("error", err.Error()))
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
