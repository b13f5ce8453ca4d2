package profile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

const globalDoc = `{
  "StringData": [
    {
      "Key": "Config_LastMicName",
      "Value": "USB Mic"
    },
    {
      "Key": "vts_main_language",
      "Value": "en"
    }
  ],
  "IntData": [
    {
      "Key": "Config_FPSOption",
      "Value": 60
    },
    {
      "Key": "Config_WebcamIndex",
      "Value": 1
    }
  ],
  "FloatData": [],
  "BoolData": [
    {
      "Key": "Config_StartAPI",
      "Value": true
    }
  ]
}
`

func setupTest(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "Config", "vts_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(globalDoc), 0o644))
	s := NewStore(filepath.Join(root, "profiles"), backup.NewManager(10, ""), lock.NewManager(filepath.Join(root, "state")))
	return s, path
}

func loadGlobal(t *testing.T, path string) *document.Global {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	g, err := document.ParseGlobal(raw)
	require.NoError(t, err)
	return g
}

func TestSave_Categories(t *testing.T) {
	s, path := setupTest(t)
	g := loadGlobal(t, path)

	tests := []struct {
		category models.ProfileCategory
		custom   []string
		keys     []string
	}{
		{models.CategoryComplete, nil, []string{"Config_LastMicName", "vts_main_language", "Config_FPSOption", "Config_WebcamIndex", "Config_StartAPI"}},
		{models.CategoryTracking, nil, []string{"Config_LastMicName", "Config_WebcamIndex"}},
		{models.CategoryAPI, nil, []string{"Config_StartAPI"}},
		{models.CategoryUI, nil, []string{"vts_main_language", "Config_FPSOption"}},
		{models.CategoryCustom, []string{"FPS"}, []string{"Config_FPSOption"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.category), func(t *testing.T) {
			p, err := s.Save(g, "p_"+string(tc.category), tc.category, SaveOptions{CustomKeys: tc.custom})
			require.NoError(t, err)

			var keys []string
			for _, list := range models.SettingLists {
				for _, st := range *p.Settings.List(list) {
					keys = append(keys, st.Key)
				}
			}
			assert.Equal(t, tc.keys, keys)

			loaded, err := s.Load(p.Name)
			require.NoError(t, err)
			assert.Equal(t, p.Settings.Len(), loaded.Settings.Len())
			assert.Equal(t, FormatVersion, loaded.Version)
		})
	}

	_, err := s.Save(g, "bad", models.CategoryCustom, SaveOptions{})
	assert.Error(t, err)
	_, err = s.Save(g, "a/b", models.CategoryComplete, SaveOptions{})
	assert.ErrorIs(t, err, shared.ErrInvalidName)
}

func TestListDeleteDiff(t *testing.T) {
	s, path := setupTest(t)
	g := loadGlobal(t, path)

	_, err := s.Save(g, "stream", models.CategoryComplete, SaveOptions{Description: "evening", Tags: []string{"live"}})
	require.NoError(t, err)
	_, err = g.Upsert(models.ListInt, "Config_FPSOption", json.RawMessage(`30`))
	require.NoError(t, err)
	_, err = g.Upsert(models.ListBool, "Config_Extra", json.RawMessage(`false`))
	require.NoError(t, err)
	_, err = s.Save(g, "recording", models.CategoryComplete, SaveOptions{})
	require.NoError(t, err)

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "recording", infos[0].Name)
	assert.Equal(t, "stream", infos[1].Name)
	assert.Equal(t, 5, infos[1].SettingCount)

	diff, err := s.Diff("stream", "recording")
	require.NoError(t, err)
	assert.Empty(t, diff.OnlyInA)
	require.Len(t, diff.OnlyInB, 1)
	assert.Equal(t, "Config_Extra", diff.OnlyInB[0].Key)
	require.Len(t, diff.Different, 1)
	assert.Equal(t, "Config_FPSOption", diff.Different[0].Key)
	assert.Equal(t, []string{"Config_Extra", "Config_FPSOption"}, diff.Keys())

	require.NoError(t, s.Delete("stream"))
	assert.ErrorIs(t, s.Delete("stream"), ErrNotFound)
	_, err = s.Load("stream")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportImport(t *testing.T) {
	s, path := setupTest(t)
	_, err := s.Save(loadGlobal(t, path), "stream", models.CategoryAPI, SaveOptions{})
	require.NoError(t, err)

	exported := filepath.Join(t.TempDir(), "shared.json")
	require.NoError(t, s.Export("stream", exported))

	_, err = s.Import(exported, false)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, s.Delete("stream"))
	p, err := s.Import(exported, false)
	require.NoError(t, err)
	assert.Equal(t, "stream", p.Name)
	assert.Equal(t, models.CategoryAPI, p.Category)
}

func TestApply_MergesCapturedKeysOnly(t *testing.T) {
	s, path := setupTest(t)
	settings := models.SettingsSet{
		IntData:  []models.Setting{{Key: "Config_FPSOption", Value: json.RawMessage(`30`)}},
		BoolData: []models.Setting{{Key: "Config_StartAPI", Value: json.RawMessage(`true`)}, {Key: "Config_New", Value: json.RawMessage(`false`)}},
	}

	res, err := s.Apply(context.Background(), settings, path, DefaultApplyOptions())
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Unchanged)
	assert.FileExists(t, res.BackupPath)

	g := loadGlobal(t, path)
	v, _ := g.Lookup(models.ListInt, "Config_FPSOption")
	assert.Equal(t, json.RawMessage(`30`), v)
	v, _ = g.Lookup(models.ListString, "Config_LastMicName")
	assert.Equal(t, json.RawMessage(`"USB Mic"`), v)
	v, ok := g.Lookup(models.ListBool, "Config_New")
	assert.True(t, ok)
	assert.Equal(t, json.RawMessage(`false`), v)

	// Applying the same settings again changes nothing and takes no backup.
	res, err = s.Apply(context.Background(), settings, path, DefaultApplyOptions())
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 3, res.Unchanged)
	assert.Empty(t, res.BackupPath)
}

func TestApply_RoundTripThroughProfile(t *testing.T) {
	s, path := setupTest(t)
	_, err := s.Save(loadGlobal(t, path), "ui", models.CategoryUI, SaveOptions{})
	require.NoError(t, err)

	// Change the live document, then re-apply the profile.
	g := loadGlobal(t, path)
	_, err = g.Upsert(models.ListInt, "Config_FPSOption", json.RawMessage(`144`))
	require.NoError(t, err)
	_, err = g.Upsert(models.ListInt, "Config_WebcamIndex", json.RawMessage(`5`))
	require.NoError(t, err)
	out, err := document.SerializeGlobal(g)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0o644))

	res, err := s.ApplyProfile(context.Background(), "ui", path, DefaultApplyOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	g = loadGlobal(t, path)
	v, _ := g.Lookup(models.ListInt, "Config_FPSOption")
	assert.Equal(t, json.RawMessage(`60`), v)
	v, _ = g.Lookup(models.ListInt, "Config_WebcamIndex")
	assert.Equal(t, json.RawMessage(`5`), v, "keys outside the profile stay untouched")
}

func TestApply_InvalidDocumentUntouched(t *testing.T) {
	s, path := setupTest(t)
	broken := []byte(`{"IntData":[{"Key":"a","Value":1},{"Key":"a","Value":2}]}`)
	require.NoError(t, os.WriteFile(path, broken, 0o644))

	settings := models.SettingsSet{IntData: []models.Setting{{Key: "b", Value: json.RawMessage(`1`)}}}
	_, err := s.Apply(context.Background(), settings, path, DefaultApplyOptions())
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.True(t, ee.Untouched)

	got, _ := os.ReadFile(path)
	assert.Equal(t, broken, got)
}

func TestApply_Cancelled(t *testing.T) {
	s, path := setupTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settings := models.SettingsSet{IntData: []models.Setting{{Key: "b", Value: json.RawMessage(`1`)}}}
	_, err := s.Apply(ctx, settings, path, ApplyOptions{LockMode: models.LockFailFast})
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindCancelled, ee.Kind)

	got, _ := os.ReadFile(path)
	assert.Equal(t, globalDoc, string(got))
}
