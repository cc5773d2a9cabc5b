package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/neurodesk/curly/pkg/cache"
	"github.com/neurodesk/curly/pkg/curly"
	"github.com/neurodesk/curly/pkg/loader"
	"github.com/neurodesk/curly/pkg/netcache"
)

// Engine resolves template references and renders them through a compiled
// template cache.
type Engine struct {
	Options *curly.Options
	Cache   *cache.Cache
	// Named resolves "@name" references: inline templates first, then
	// template_dir.
	Named loader.Loader
	// Remote resolves http(s) references.
	Remote loader.Loader
}

// NewEngine builds an engine from the config. Filter scripts are loaded
// here.
func (c *Config) NewEngine() (*Engine, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	inline := loader.MemoryLoader{}
	for name, tpl := range c.Templates {
		inline[name] = string(tpl)
	}
	named := loader.Chain{inline}
	if c.TemplateDir != "" {
		named = append(named, loader.DirLoader{Root: c.TemplateDir})
	}
	remote := loader.HTTPLoader{Base: c.TemplateBaseURL, Cache: netcache.New(c.HTTPCacheDir)}
	if c.TemplateBaseURL != "" {
		named = append(named, remote)
	}
	return &Engine{
		Options: opts,
		Cache:   cache.New(opts, c.Cache),
		Named:   named,
		Remote:  remote,
	}, nil
}

// Source returns the source of ref, which is "@name", an http(s) URL or a
// file path.
func (e *Engine) Source(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "@"):
		return e.Named.Load(ctx, strings.TrimPrefix(ref, "@"))
	case loader.IsURL(ref):
		return e.Remote.Load(ctx, ref)
	default:
		b, err := os.ReadFile(ref)
		if err != nil {
			return "", fmt.Errorf("reading template: %w", err)
		}
		return string(b), nil
	}
}

// Template loads and compiles ref. The template is named after ref.
func (e *Engine) Template(ctx context.Context, ref string) (*curly.Template, error) {
	src, err := e.Source(ctx, ref)
	if err != nil {
		return nil, err
	}
	tpl, err := e.Cache.Get(src)
	if err != nil {
		var ce *curly.Error
		if errors.As(err, &ce) && ce.Name == "" {
			ce.Name = ref
		}
		return nil, err
	}
	return tpl, nil
}

// Render loads, compiles and renders ref against data.
func (e *Engine) Render(ctx context.Context, ref string, data curly.Context) (string, error) {
	tpl, err := e.Template(ctx, ref)
	if err != nil {
		return "", err
	}
	out, err := tpl.Render(data)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", ref, err)
	}
	return out, nil
}
