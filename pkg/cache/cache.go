package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/neurodesk/curly/pkg/curly"
)

// Config contains configuration options for the template cache
type Config struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int `yaml:"max_size"`
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration `yaml:"ttl"`
}

// Cache holds compiled templates keyed by a hash of their source. All
// templates in a cache are compiled with the same options.
type Cache struct {
	mu     sync.RWMutex
	opts   *curly.Options
	config Config
	items  map[string]*entry
	lru    *list.List
	now    func() time.Time
}

type entry struct {
	key      string
	template *curly.Template
	expiry   time.Time
	element  *list.Element
}

// New creates a cache that compiles templates with opts.
func New(opts *curly.Options, config Config) *Cache {
	return &Cache{
		opts:   opts,
		config: config,
		items:  make(map[string]*entry),
		lru:    list.New(),
		now:    time.Now,
	}
}

// Key returns the cache key for source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the compiled template for source, compiling and caching it on
// a miss. Compile errors are not cached.
func (c *Cache) Get(source string) (*curly.Template, error) {
	if c.config.MaxSize <= 0 {
		return curly.Compile(source, c.opts)
	}
	key := Key(source)
	if t, ok := c.lookup(key); ok {
		return t, nil
	}

	t, err := curly.Compile(source, c.opts)
	if err != nil {
		return nil, err
	}
	c.set(key, t)
	return t, nil
}

func (c *Cache) lookup(key string) (*curly.Template, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The entry may have been evicted between the two locks.
	if c.items[key] != e {
		return nil, false
	}
	if c.expired(e) {
		c.remove(e, "expired")
		return nil, false
	}
	c.lru.MoveToFront(e.element)
	return e.template, true
}

func (c *Cache) set(key string, t *curly.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.template = t
		existing.expiry = c.expiryFromNow()
		c.lru.MoveToFront(existing.element)
		return
	}
	for c.lru.Len() >= c.config.MaxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*entry), "evicted")
	}
	e := &entry{key: key, template: t, expiry: c.expiryFromNow()}
	e.element = c.lru.PushFront(e)
	c.items[key] = e
}

func (c *Cache) expiryFromNow() time.Time {
	if c.config.TTL <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.config.TTL)
}

func (c *Cache) expired(e *entry) bool {
	return c.config.TTL > 0 && c.now().After(e.expiry)
}

// remove drops e. The caller holds the write lock.
func (c *Cache) remove(e *entry, reason string) {
	delete(c.items, e.key)
	c.lru.Remove(e.element)
	slog.Debug("template cache "+reason, "key", e.key[:12], "name", e.template.Name)
}

// Remove drops the template compiled from source, if cached.
func (c *Cache) Remove(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[Key(source)]; ok {
		c.remove(e, "removed")
	}
}

// Clear removes all templates from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	c.lru = list.New()
}

// Len returns the current number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
