package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurodesk/curly/pkg/netcache"
)

// Loader resolves a template name to its source.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}

// ErrTemplateNotFound is returned when a loader has no template by that name.
type ErrTemplateNotFound struct{ Name string }

func (e ErrTemplateNotFound) Error() string { return "template not found: " + e.Name }

// IsNotFound reports whether err means the template does not exist.
func IsNotFound(err error) bool {
	var nf ErrTemplateNotFound
	return errors.As(err, &nf)
}

// MemoryLoader serves templates from a map.
type MemoryLoader map[string]string

func (m MemoryLoader) Load(_ context.Context, name string) (string, error) {
	if s, ok := m[name]; ok {
		return s, nil
	}
	return "", ErrTemplateNotFound{name}
}

// DirLoader serves templates from files below Root. Names are slash
// separated and may not leave Root.
type DirLoader struct {
	Root string
}

func (d DirLoader) Load(_ context.Context, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("template name %q escapes %s", name, d.Root)
	}
	b, err := os.ReadFile(filepath.Join(d.Root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrTemplateNotFound{name}
	}
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", name, err)
	}
	return string(b), nil
}

// HTTPLoader fetches templates over HTTP through an on-disk cache. Names are
// absolute URLs or paths relative to Base.
type HTTPLoader struct {
	Base  string
	Cache *netcache.Cache
}

// IsURL reports whether name is an http(s) URL.
func IsURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

func (h HTTPLoader) Load(ctx context.Context, name string) (string, error) {
	target, err := h.resolve(name)
	if err != nil {
		return "", err
	}
	body, _, err := h.Cache.Get(ctx, target)
	if err != nil {
		var se *netcache.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return "", ErrTemplateNotFound{name}
		}
		return "", err
	}
	return string(body), nil
}

func (h HTTPLoader) resolve(name string) (string, error) {
	if IsURL(name) {
		return name, nil
	}
	if h.Base == "" {
		return "", ErrTemplateNotFound{name}
	}
	base, err := url.Parse(h.Base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	ref, err := url.Parse(name)
	if err != nil {
		return "", fmt.Errorf("parsing template name %q: %w", name, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Chain tries each loader in order and returns the first template found.
type Chain []Loader

func (c Chain) Load(ctx context.Context, name string) (string, error) {
	for _, l := range c {
		src, err := l.Load(ctx, name)
		if err == nil {
			return src, nil
		}
		if !IsNotFound(err) {
			return "", err
		}
	}
	return "", ErrTemplateNotFound{name}
}
