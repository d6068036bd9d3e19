// Package templates holds the HTML fragments served under /html. Templates are
// addressed by logical name, the slash-separated path below the template root.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

//go:embed files
var embedded embed.FS

// ErrNoTemplate is returned when none of the candidate names exist.
var ErrNoTemplate = errors.New("no such template")

// Registry is a set of parsed templates. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	fsys   fs.FS
	set    map[string]*template.Template
	parsed time.Time
	reload bool
	log    *slog.Logger
}

// Embedded returns the registry for the templates compiled into the binary.
func Embedded() (*Registry, error) {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		return nil, err
	}
	return newRegistry(sub, false, nil)
}

// Dir parses templates from a directory. With reload set, the directory is
// re-parsed whenever a file in it changes.
func Dir(dir string, reload bool, log *slog.Logger) (*Registry, error) {
	return newRegistry(os.DirFS(dir), reload, log)
}

func newRegistry(fsys fs.FS, reload bool, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{fsys: fsys, reload: reload, log: log}
	set, stamp, err := parseAll(fsys)
	if err != nil {
		return nil, err
	}
	r.set, r.parsed = set, stamp
	return r, nil
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"join": strings.Join,
	"short": func(s string) string {
		if len(s) > 8 {
			return s[:8]
		}
		return s
	},
}

func parseAll(fsys fs.FS) (map[string]*template.Template, time.Time, error) {
	set := map[string]*template.Template{}
	var latest time.Time
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		t, err := template.New(path).Funcs(funcs).Parse(string(src))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		set[path] = t
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return set, latest, nil
}

// latestChange returns the newest modification time below the root.
func latestChange(fsys fs.FS) time.Time {
	var latest time.Time
	_ = fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}

func (r *Registry) templates() map[string]*template.Template {
	if r.reload {
		if changed := latestChange(r.fsys); changed.After(r.current()) {
			r.refresh(changed)
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

func (r *Registry) current() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsed
}

func (r *Registry) refresh(changed time.Time) {
	set, _, err := parseAll(r.fsys)
	r.mu.Lock()
	defer r.mu.Unlock()
	// a broken edit keeps the previous set until the next change
	r.parsed = changed
	if err != nil {
		r.log.Warn("reload templates", "error", err)
		return
	}
	r.set = set
	r.log.Debug("templates reloaded", "count", len(set))
}

// Check reports every page template missing from the registry.
func (r *Registry) Check() error {
	set := r.templates()
	var missing []string
	for _, name := range Pages {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNoTemplate, strings.Join(missing, ", "))
	}
	return nil
}

// Resolve returns the first candidate that exists.
func (r *Registry) Resolve(candidates ...string) (string, error) {
	set := r.templates()
	for _, name := range candidates {
		if _, ok := set[name]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoTemplate, strings.Join(candidates, ", "))
}

// InputCandidates lists the input widget templates for a data type, most
// specific first.
func InputCandidates(typeName string, isScalar bool) []string {
	candidates := []string{"values/inputs/" + typeName + ".html"}
	if isScalar {
		candidates = append(candidates, "values/inputs/generic-scalar.html")
	}
	return append(candidates, "values/inputs/generic.html")
}

// Render executes name into w. Output is buffered so a failing template
// writes nothing.
func (r *Registry) Render(w io.Writer, name string, data any) error {
	t, ok := r.templates()[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Fragment renders name for embedding in another template. A failure yields
// the escaped error text instead of the fragment.
func (r *Registry) Fragment(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.log.Warn("render fragment", "template", name, "error", err)
		return ErrorFragment(err)
	}
	return template.HTML(buf.String())
}

// ErrorFragment renders err as inline text.
func ErrorFragment(err error) template.HTML {
	return template.HTML(`<div class="render-error">` + template.HTMLEscapeString(err.Error()) + `</div>`)
}
