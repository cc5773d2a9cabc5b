package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/neurodesk/curly/pkg/cache"
	"github.com/neurodesk/curly/pkg/curly"
	"github.com/neurodesk/curly/pkg/starlark"
	v "github.com/neurodesk/curly/pkg/validator"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "curly.yaml"

// Config is the on-disk configuration of the curly command.
type Config struct {
	Escape          bool                            `yaml:"escape"`
	BuiltinFilters  bool                            `yaml:"builtin_filters"`
	FilterScripts   []string                        `yaml:"filter_scripts"`
	TemplateDir     string                          `yaml:"template_dir"`
	TemplateBaseURL string                          `yaml:"template_base_url"`
	HTTPCacheDir    string                          `yaml:"http_cache_dir"`
	Cache           cache.Config                    `yaml:"cache"`
	Templates       map[string]curly.TemplateString `yaml:"templates"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Escape:         true,
		BuiltinFilters: true,
		HTTPCacheDir:   defaultHTTPCacheDir(),
		Cache:          cache.Config{MaxSize: 128},
	}
}

func defaultHTTPCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "curly")
	}
	return filepath.Join(os.TempDir(), "curly-cache")
}

// Parse decodes a config document over the defaults. Unknown fields are
// errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Load reads path, applies environment overrides and validates the result.
// Relative paths in the file are resolved against its directory. A missing
// file is an error unless optional is set, in which case the defaults are
// used.
func Load(path string, optional bool) (*Config, error) {
	b, err := os.ReadFile(path)
	var cfg *Config
	switch {
	case err == nil:
		cfg, err = Parse(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	case optional && errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, s := range c.FilterScripts {
		c.FilterScripts[i] = abs(s)
	}
	c.TemplateDir = abs(c.TemplateDir)
	c.HTTPCacheDir = abs(c.HTTPCacheDir)
}

// ApplyEnv overrides fields from CURLY_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if val := getenv("CURLY_ESCAPE"); val != "" {
		b, err := parseBool(val)
		if err != nil {
			return fmt.Errorf("CURLY_ESCAPE: %w", err)
		}
		c.Escape = b
	}
	if val := getenv("CURLY_TEMPLATE_DIR"); val != "" {
		c.TemplateDir = val
	}
	if val := getenv("CURLY_HTTP_CACHE_DIR"); val != "" {
		c.HTTPCacheDir = val
	}
	if val := getenv("CURLY_CACHE_MAX_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("CURLY_CACHE_MAX_SIZE: %w", err)
		}
		c.Cache.MaxSize = n
	}
	if val := getenv("CURLY_CACHE_TTL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("CURLY_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	return nil
}

// Validate checks the config for consistency. Inline templates are compiled.
func (c *Config) Validate() error {
	return v.All(
		v.NonNegative(c.Cache.MaxSize, "cache.max_size"),
		v.NonNegative(c.Cache.TTL, "cache.ttl"),
		v.NoDuplicates(c.FilterScripts, "filter_scripts"),
		v.Map(c.FilterScripts, func(s, desc string) error {
			return v.All(v.NotEmpty(s, desc), v.FileExists(s, desc))
		}, "filter_scripts"),
		v.DirExists(c.TemplateDir, "template_dir"),
		v.HasNoDirectives(c.TemplateBaseURL, "template_base_url"),
		validBaseURL(c.TemplateBaseURL),
		v.MapDict(c.Templates, func(name string, tpl curly.TemplateString) error {
			return v.All(
				v.NotEmpty(name, "template name"),
				v.HasNoDirectives(name, "template name"),
				tpl.Validate(),
			)
		}, "templates"),
	)
}

// Filters returns the filters templates may use: the built-in set, if
// enabled, overlaid with the functions of each filter script in order.
func (c *Config) Filters() (curly.Filters, error) {
	filters := curly.Filters{}
	if c.BuiltinFilters {
		filters = curly.DefaultFilters()
	}
	for _, script := range c.FilterScripts {
		loaded, err := starlark.LoadFilters(script, nil)
		if err != nil {
			return nil, err
		}
		filters = filters.With(loaded)
	}
	return filters, nil
}

// Options builds compile options from the config.
func (c *Config) Options() (*curly.Options, error) {
	filters, err := c.Filters()
	if err != nil {
		return nil, err
	}
	return &curly.Options{Filters: filters, DisableEscape: !c.Escape}, nil
}

// validBaseURL accepts an empty value or an absolute http(s) URL.
func validBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("template_base_url: %w", err)
	}
	return v.All(
		v.MatchesAllowed(u.Scheme, []string{"http", "https"}, "template_base_url scheme"),
		v.NotEmpty(u.Host, "template_base_url host"),
	)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
