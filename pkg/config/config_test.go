package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neurodesk/curly/pkg/curly"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.Escape || !cfg.BuiltinFilters || cfg.Cache.MaxSize != 128 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseFields(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
escape: false
builtin_filters: false
cache:
  max_size: 4
  ttl: 10m
templates:
  greeting: "Hello {{ name | upper }}"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Escape || cfg.BuiltinFilters {
		t.Fatalf("flags not decoded: %+v", cfg)
	}
	if cfg.Cache.MaxSize != 4 || cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("cache: %+v", cfg.Cache)
	}
	if cfg.Templates["greeting"] != "Hello {{ name | upper }}" {
		t.Fatalf("templates: %v", cfg.Templates)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("escpae: true\n"))
	if err == nil || !strings.Contains(err.Error(), "escpae") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CURLY_ESCAPE":         "off",
		"CURLY_TEMPLATE_DIR":   "/srv/templates",
		"CURLY_CACHE_MAX_SIZE": "9",
		"CURLY_CACHE_TTL":      "1h",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Escape || cfg.TemplateDir != "/srv/templates" || cfg.Cache.MaxSize != 9 || cfg.Cache.TTL != time.Hour {
		t.Fatalf("env not applied: %+v", cfg)
	}

	for k, bad := range map[string]string{"CURLY_ESCAPE": "maybe", "CURLY_CACHE_MAX_SIZE": "many", "CURLY_CACHE_TTL": "soon"} {
		err := Default().ApplyEnv(func(key string) string {
			if key == k {
				return bad
			}
			return ""
		})
		if err == nil || !strings.Contains(err.Error(), k) {
			t.Fatalf("%s=%s: expected error, got %v", k, bad, err)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  func(*Config)
		msg  string
	}{
		{"negative cache", func(c *Config) { c.Cache.MaxSize = -1 }, "cache.max_size"},
		{"missing script", func(c *Config) { c.FilterScripts = []string{"/nonexistent/f.star"} }, "filter_scripts[0]"},
		{"duplicate script", func(c *Config) { c.FilterScripts = []string{"a", "a"} }, "duplicate"},
		{"missing dir", func(c *Config) { c.TemplateDir = "/nonexistent/dir" }, "template_dir"},
		{"broken template", func(c *Config) {
			c.Templates = map[string]curly.TemplateString{"bad": "{{#if x}}"}
		}, `templates["bad"]`},
		{"ftp base url", func(c *Config) { c.TemplateBaseURL = "ftp://example.org/tpl/" }, "template_base_url scheme"},
		{"relative base url", func(c *Config) { c.TemplateBaseURL = "tpl/" }, "template_base_url scheme"},
		{"base url without host", func(c *Config) { c.TemplateBaseURL = "https:///tpl/" }, "template_base_url host"},
		{"templated name", func(c *Config) {
			c.Templates = map[string]curly.TemplateString{"{{x}}": "ok"}
		}, "template name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.cfg(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected error mentioning %q, got %v", tc.msg, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	withURL := Default()
	withURL.TemplateBaseURL = "https://example.org/tpl/"
	if err := withURL.Validate(); err != nil {
		t.Fatalf("https base url: %v", err)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "filters", "text.star"), "def exclaim(s):\n    return s + \"!\"\n")
	writeFile(t, filepath.Join(dir, "templates", "page.tpl"), "{{ title | exclaim | upper }}")
	writeFile(t, filepath.Join(dir, DefaultFile), `
filter_scripts: [filters/text.star]
template_dir: templates
http_cache_dir: .cache
`)

	cfg, err := Load(filepath.Join(dir, DefaultFile), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TemplateDir != filepath.Join(dir, "templates") || cfg.HTTPCacheDir != filepath.Join(dir, ".cache") {
		t.Fatalf("paths not resolved: %+v", cfg)
	}

	e, err := cfg.NewEngine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	out, err := e.Render(context.Background(), "@page.tpl", curly.Context{"title": "hi"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "HI!" {
		t.Fatalf("got %q", out)
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), DefaultFile)
	if _, err := Load(missing, false); err == nil {
		t.Fatal("expected error for missing required config")
	}
	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("optional load: %v", err)
	}
	if !cfg.Escape {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestEngineSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote {{ x }}"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "local.tpl")
	writeFile(t, file, "local {{ x }}")

	cfg := Default()
	cfg.HTTPCacheDir = filepath.Join(dir, "cache")
	cfg.Templates = map[string]curly.TemplateString{"inline": "inline {{ x }}"}
	e, err := cfg.NewEngine()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	for ref, want := range map[string]string{
		"@inline":            "inline &lt;",
		file:                 "local &lt;",
		srv.URL + "/any.tpl": "remote &lt;",
	} {
		out, err := e.Render(context.Background(), ref, curly.Context{"x": "<"})
		if err != nil {
			t.Fatalf("%s: %v", ref, err)
		}
		if out != want {
			t.Fatalf("%s: got %q, want %q", ref, out, want)
		}
	}

	if _, err := e.Render(context.Background(), "@missing", nil); err == nil {
		t.Fatal("expected not found")
	}
}

func TestEngineNamesCompileErrors(t *testing.T) {
	cfg := Default()
	cfg.Templates = map[string]curly.TemplateString{"broken": "{{ a ? b }}"}
	e, err := cfg.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Template(context.Background(), "@broken")
	var ce *curly.Error
	if !errors.As(err, &ce) || ce.Name != "@broken" {
		t.Fatalf("expected named curly error, got %v", err)
	}
}

func TestOptionsWithoutBuiltins(t *testing.T) {
	cfg := Default()
	cfg.BuiltinFilters = false
	cfg.Escape = false
	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Filters) != 0 || !opts.DisableEscape {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
