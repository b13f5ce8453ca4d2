package document

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_CachesAndInvalidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Hiyori.vtube.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	l := NewLoader(time.Minute)
	doc, raw, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(raw))

	// Callers get private copies.
	doc.SetName("Changed")
	again, _, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Hiyori", again.Name())

	// A rewrite with a different size is picked up.
	updated := []byte(`{"Version":1,"Name":"Other","ModelID":"0123456789abcdef0123456789abcdef"}`)
	require.NoError(t, os.WriteFile(path, updated, 0o644))
	again, _, err = l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Other", again.Name())

	l.Invalidate(path)
	_, found := l.Cache.Get("doc_" + cacheKey(path))
	assert.False(t, found)
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(0)
	_, _, err := l.Load(filepath.Join(t.TempDir(), "missing.vtube.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.vtube.json")
	require.NoError(t, os.WriteFile(path, []byte(`nope`), 0o644))
	_, _, err = l.Load(path)
	assert.Error(t, err)
}
