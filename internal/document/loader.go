package document

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
)

// DefaultCacheTTL is how long a parsed document stays cached.
const DefaultCacheTTL = 5 * time.Minute

// Loader reads documents from disk and caches parsed results keyed by path.
// A cached entry is only served while the file's size and mtime are unchanged.
type Loader struct {
	Cache *cache.Cache
	TTL   time.Duration
}

type cached struct {
	size  int64
	mtime time.Time
	raw   []byte
	doc   *Document
	glob  *Global
}

// NewLoader returns a Loader with its own cache.
func NewLoader(ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Loader{Cache: cache.New(ttl, 2*ttl), TTL: ttl}
}

// Load returns a private copy of the model document at path and its raw bytes.
func (l *Loader) Load(path string) (*Document, []byte, error) {
	entry, err := l.load(path, "doc", func(raw []byte, c *cached) error {
		doc, err := Parse(raw)
		c.doc = doc
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry.doc.Clone(), entry.raw, nil
}

// LoadGlobal returns a private copy of the global document at path and its raw bytes.
func (l *Loader) LoadGlobal(path string) (*Global, []byte, error) {
	entry, err := l.load(path, "global", func(raw []byte, c *cached) error {
		g, err := ParseGlobal(raw)
		c.glob = g
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry.glob.Clone(), entry.raw, nil
}

// Invalidate drops any cached parse of path.
func (l *Loader) Invalidate(path string) {
	key := cacheKey(path)
	l.Cache.Delete("doc_" + key)
	l.Cache.Delete("global_" + key)
}

func (l *Loader) load(path, kind string, parse func([]byte, *cached) error) (*cached, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	key := kind + "_" + cacheKey(path)
	if v, found := l.Cache.Get(key); found {
		c := v.(*cached)
		if c.size == st.Size() && c.mtime.Equal(st.ModTime()) {
			logging.Log.Debugf("document loader: cache hit for %s", path)
			return c, nil
		}
	}

	logging.Log.Debugf("document loader: cache miss for %s", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &cached{size: st.Size(), mtime: st.ModTime(), raw: raw}
	if err := parse(raw, c); err != nil {
		return nil, err
	}
	l.Cache.Set(key, c, l.TTL)
	return c, nil
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
