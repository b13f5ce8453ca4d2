package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_KnownVector(t *testing.T) {
	fp, err := Bytes([]byte("abc"), SHA256)
	require.NoError(t, err)
	assert.Equal(t, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", fp)
}

func TestBytes_Blake2b(t *testing.T) {
	fp, err := Bytes([]byte("abc"), Blake2b)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fp, "blake2b:"))
	assert.Len(t, strings.TrimPrefix(fp, "blake2b:"), 64)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		algo    Algorithm
		wantErr bool
	}{
		{"sha256:00ff", SHA256, false},
		{"blake2b:abcd", Blake2b, false},
		{"md5:abcd", "", true},
		{"sha256:", "", true},
		{"nocolon", "", true},
		{"sha256:zz", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			algo, _, err := Parse(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.algo, algo)
		})
	}
}

func TestMatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smile.exp3.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Type":"Live2D Expression"}`), 0o644))

	fp, size, err := File(path, Blake2b)
	require.NoError(t, err)
	assert.Equal(t, int64(28), size)

	ok, err := MatchFile(path, fp)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	ok, err = MatchFile(path, fp)
	require.NoError(t, err)
	assert.False(t, ok)
}
