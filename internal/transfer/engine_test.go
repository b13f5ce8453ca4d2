package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/idgen"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

var (
	idH1 = strings.Repeat("1", 32)
	idH2 = strings.Repeat("2", 32)
	idT1 = strings.Repeat("e", 32)
)

type hk struct{ ID, Name, Action, File string }

type fixture struct {
	engine  *Engine
	srcPath string
	dstPath string
	srcDir  string
	dstDir  string
}

func writeModel(t *testing.T, dir, name string, hotkeys []hk, mappings []string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	hks := []map[string]any{}
	for _, h := range hotkeys {
		hks = append(hks, map[string]any{
			"HotkeyID": h.ID, "Name": h.Name, "Action": h.Action, "File": h.File,
			"Triggers": map[string]any{"Trigger1": "N1", "ScreenButton": -1},
		})
	}
	params := []map[string]any{}
	for _, m := range mappings {
		params = append(params, map[string]any{
			"Name": m, "Input": "In" + m, "OutputLive2D": "Param" + m, "Smoothing": 10,
		})
	}
	id, err := idgen.Generate()
	require.NoError(t, err)
	raw, err := json.MarshalIndent(map[string]any{
		"Version": 1, "Name": name, "ModelID": id,
		"FileReferences":    map[string]any{"Model": name + ".model3.json"},
		"Hotkeys":           hks,
		"ParameterSettings": params,
	}, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, name+".vtube.json")
	require.NoError(t, os.WriteFile(path, append(raw, '\n'), 0o644))
	return path
}

func setupTest(t *testing.T, srcHotkeys []hk, srcMappings []string, dstHotkeys []hk, dstMappings []string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		engine: NewEngine(backup.NewManager(10, ""), lock.NewManager(filepath.Join(root, "state")), document.NewLoader(0)),
		srcDir: filepath.Join(root, "Live2DModels", "Source"),
		dstDir: filepath.Join(root, "Live2DModels", "Target"),
	}
	f.srcPath = writeModel(t, f.srcDir, "Source", srcHotkeys, srcMappings)
	f.dstPath = writeModel(t, f.dstDir, "Target", dstHotkeys, dstMappings)
	return f
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func backupCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if backup.IsBackupFile(e.Name()) {
			n++
		}
	}
	return n
}

func spec(mut func(*models.TransferSpec)) models.TransferSpec {
	s := models.DefaultTransferSpec()
	mut(&s)
	return s
}

func TestApplyTransfer_MissingAssetWarning(t *testing.T) {
	f := setupTest(t,
		[]hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}, {idH2, "H2", "ToggleExpression", "gone.exp3.json"}}, nil,
		[]hk{{idT1, "Existing", "ToggleExpression", ""}}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{"Type":"Live2D Expression"}`), 0o644))

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1, idH2}
		s.CopyAssets = true
		s.RegenerateIDs = true
	}), nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Applied)
	assert.Equal(t, 2, res.HotkeysAdded)
	assert.Equal(t, 1, res.FilesCopied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, idH2, res.Warnings[0].Element)
	assert.Equal(t, idH2+": "+msgAssetMissing, res.Warnings[0].String())
	assert.FileExists(t, res.BackupPath)
	assert.FileExists(t, filepath.Join(f.dstDir, "smile.exp3.json"))

	doc, err := document.Parse(readFile(t, f.dstPath))
	require.NoError(t, err)
	require.Len(t, doc.Hotkeys, 3)
	for _, h := range doc.Hotkeys[1:] {
		assert.True(t, idgen.IsValid(h.ID()))
		assert.NotEqual(t, idH1, h.ID())
		assert.NotEqual(t, idH2, h.ID())
	}
	assert.Equal(t, res.IDMap[idH1], doc.Hotkeys[1].ID())
	assert.Equal(t, "gone.exp3.json", doc.Hotkeys[2].File())
	assert.True(t, document.Validate(doc, document.ValidateOptions{}).OK())
}

func TestApplyTransfer_ConflictLeavesTargetUntouched(t *testing.T) {
	f := setupTest(t, nil, []string{"P1"}, nil, []string{"P1"})
	before := readFile(t, f.dstPath)

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"P1"}
	}), nil)

	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindConflict, ee.Kind)
	assert.True(t, ee.Untouched)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "P1: identifier already exists", res.Errors[0].String())
	assert.Equal(t, before, readFile(t, f.dstPath))
	assert.Equal(t, 0, backupCount(t, f.dstDir))
}

func TestApplyTransfer_Idempotence(t *testing.T) {
	f := setupTest(t, []hk{{idH1, "H1", "RemoveAllExpressions", ""}}, []string{"EyeL"}, nil, nil)
	s := spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1}
		s.MappingIDs = []string{"EyeL"}
	})

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, s, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	afterFirst := readFile(t, f.dstPath)
	backups := backupCount(t, f.dstDir)

	res, err = f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, s, nil)
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindConflict, ee.Kind)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, afterFirst, readFile(t, f.dstPath))
	assert.Equal(t, backups, backupCount(t, f.dstDir))
}

func TestApplyTransfer_DryRunEquivalence(t *testing.T) {
	hotkeys := []hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}, {idH2, "H2", "ToggleExpression", "gone.exp3.json"}}
	mut := func(dry bool) models.TransferSpec {
		return spec(func(s *models.TransferSpec) {
			s.HotkeyIDs = []string{idH1, idH2}
			s.MappingIDs = []string{"EyeL"}
			s.CopyAssets = true
			s.RegenerateIDs = true
			s.DryRun = dry
		})
	}

	f := setupTest(t, hotkeys, []string{"EyeL"}, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{}`), 0o644))
	before := readFile(t, f.dstPath)

	dry, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, mut(true), nil)
	require.NoError(t, err)
	assert.False(t, dry.Applied)
	assert.Equal(t, before, readFile(t, f.dstPath))
	assert.NoFileExists(t, filepath.Join(f.dstDir, "smile.exp3.json"))
	assert.Equal(t, 0, backupCount(t, f.dstDir))

	applied, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, mut(false), nil)
	require.NoError(t, err)
	assert.True(t, applied.Applied)

	assert.Equal(t, dry.Success, applied.Success)
	assert.Equal(t, dry.HotkeysAdded, applied.HotkeysAdded)
	assert.Equal(t, dry.MappingsAdded, applied.MappingsAdded)
	assert.Equal(t, dry.FilesCopied, applied.FilesCopied)
	assert.Equal(t, dry.FilesSkipped, applied.FilesSkipped)
	assert.Equal(t, dry.Warnings, applied.Warnings)
	assert.NotEqual(t, before, readFile(t, f.dstPath))
}

func TestApplyTransfer_StrictMissingAsset(t *testing.T) {
	f := setupTest(t, []hk{{idH2, "H2", "ToggleExpression", "gone.exp3.json"}}, nil, nil, nil)
	before := readFile(t, f.dstPath)

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH2}
		s.Strict = true
	}), nil)
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindReferential, ee.Kind)
	assert.Equal(t, idH2, ee.Element)
	assert.False(t, res.Success)
	assert.Equal(t, before, readFile(t, f.dstPath))
}

func TestApplyTransfer_UnknownSelection(t *testing.T) {
	f := setupTest(t, nil, []string{"EyeL"}, nil, nil)
	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"EyeL", "Nope"}
	}), nil)
	require.Error(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Nope", res.Errors[0].Element)
}

func TestApplyTransfer_InvalidSpec(t *testing.T) {
	f := setupTest(t, nil, nil, nil, nil)
	_, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, models.TransferSpec{}, nil)
	assert.Error(t, err)

	_, err = f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, models.TransferSpec{MappingIDs: []string{"x"}, LockMode: "sometimes"}, nil)
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindValidation, ee.Kind)
}

func TestApplyTransfer_AssetCollisions(t *testing.T) {
	f := setupTest(t,
		[]hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}, {idH2, "H2", "ToggleExpression", "Expressions/angry.exp3.json"}}, nil,
		nil, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.srcDir, "Expressions"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.dstDir, "Expressions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{"v":"src"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dstDir, "smile.exp3.json"), []byte(`{"v":"dst"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "Expressions", "angry.exp3.json"), []byte(`{"v":"same"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dstDir, "Expressions", "angry.exp3.json"), []byte(`{"v":"same"}`), 0o644))

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1, idH2}
		s.CopyAssets = true
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCopied)
	assert.Equal(t, 1, res.FilesSkipped)

	assert.Equal(t, `{"v":"dst"}`, string(readFile(t, filepath.Join(f.dstDir, "smile.exp3.json"))))
	assert.Equal(t, `{"v":"src"}`, string(readFile(t, filepath.Join(f.dstDir, "smile_2.exp3.json"))))

	doc, err := document.Parse(readFile(t, f.dstPath))
	require.NoError(t, err)
	assert.Equal(t, "smile_2.exp3.json", doc.Hotkey(idH1).File())
	assert.Equal(t, "Expressions/angry.exp3.json", doc.Hotkey(idH2).File())
	assert.True(t, document.Validate(doc, document.ValidateOptions{AssetDir: f.dstDir}).OK())
}

func TestApplyTransfer_NonAtomicSkipsFailingElements(t *testing.T) {
	f := setupTest(t, nil, []string{"P1", "P2"}, nil, []string{"P1"})

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"P1", "P2"}
		s.Atomic = false
	}), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.MappingsAdded)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "P1: identifier already exists", res.Errors[0].String())

	doc, err := document.Parse(readFile(t, f.dstPath))
	require.NoError(t, err)
	assert.Len(t, doc.Mappings, 2)
	assert.NotNil(t, doc.Mapping("P2"))
}

func TestApplyTransfer_RegenerateMappingName(t *testing.T) {
	f := setupTest(t, nil, []string{"P1"}, nil, []string{"P1", "P1 (2)"})

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"P1"}
		s.RegenerateIDs = true
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, "P1 (3)", res.IDMap["P1"])

	doc, err := document.Parse(readFile(t, f.dstPath))
	require.NoError(t, err)
	assert.NotNil(t, doc.Mapping("P1 (3)"))
}

func TestApplyTransfer_CancellationRollsBack(t *testing.T) {
	f := setupTest(t, []hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}}, []string{"EyeL"}, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{}`), 0o644))
	before := readFile(t, f.dstPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := task.ReporterFunc(func(done, total int, stage string) {
		if stage == "append" {
			cancel()
		}
	})

	res, err := f.engine.ApplyTransfer(ctx, f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1}
		s.MappingIDs = []string{"EyeL"}
		s.CopyAssets = true
	}), reporter)

	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindCancelled, ee.Kind)
	assert.True(t, ee.RolledBack)
	assert.True(t, res.RolledBack)
	assert.False(t, res.Success)
	assert.Equal(t, before, readFile(t, f.dstPath))
	assert.NoFileExists(t, filepath.Join(f.dstDir, "smile.exp3.json"))
}

func TestApplyTransfer_LockedTarget(t *testing.T) {
	f := setupTest(t, nil, []string{"EyeL"}, nil, nil)
	held, err := f.engine.Locks.Acquire(context.Background(), f.dstPath, models.LockFailFast)
	require.NoError(t, err)
	defer held.Release()

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"EyeL"}
		s.LockMode = models.LockFailFast
	}), nil)
	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindLocked, ee.Kind)
	assert.True(t, errors.Is(err, lock.ErrLocked))
	assert.False(t, res.Success)
}

func TestApplyTransfer_RequireKnownOutputs(t *testing.T) {
	f := setupTest(t, nil, []string{"EyeL", "Mouth"}, nil, []string{"EyeL"})

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"Mouth"}
		s.RequireKnownOutputs = true
	}), nil)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Mouth", res.Warnings[0].Element)
	assert.Equal(t, "known_output", res.Warnings[0].Check)

	// Strict mode turns it into an element error.
	_, err = f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"Mouth"}
		s.RegenerateIDs = true
		s.RequireKnownOutputs = true
		s.Strict = true
	}), nil)
	assert.NoError(t, err, "Mouth is now mapped in the target, so its output is known")
}

func TestValidateTransfer(t *testing.T) {
	f := setupTest(t, []hk{{idH2, "H2", "ToggleExpression", "gone.exp3.json"}}, []string{"P1"}, nil, []string{"P1"})
	before := readFile(t, f.dstPath)

	rep, err := f.engine.ValidateTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH2}
		s.MappingIDs = []string{"P1"}
	}))
	require.NoError(t, err)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, models.KindConflict, rep.Errors[0].Kind)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, idH2, rep.Warnings[0].Element)
	assert.Equal(t, before, readFile(t, f.dstPath))
}

func TestValidateTransfer_BrokenTarget(t *testing.T) {
	f := setupTest(t, nil, []string{"P1"}, nil, nil)
	require.NoError(t, os.WriteFile(f.dstPath, []byte(`{"Version":1}`), 0o644))

	rep, err := f.engine.ValidateTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.MappingIDs = []string{"P1"}
	}))
	require.NoError(t, err)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, models.KindStructural, rep.Errors[0].Kind)
	assert.Equal(t, "target", rep.Errors[0].Element)
}

func TestApplyTransfer_RevalidationFailureRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		failAt  int
		written bool
	}{
		{name: "before write", failAt: 1},
		{name: "after write", failAt: 2, written: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTest(t, []hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}}, []string{"EyeL"}, nil, nil)
			require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{}`), 0o644))
			before := readFile(t, f.dstPath)

			calls := 0
			var seen []byte
			f.engine.verify = func(raw []byte) *models.EngineError {
				calls++
				if calls == tt.failAt {
					seen = append([]byte(nil), raw...)
					return models.Errorf(models.KindValidation, "target", "revalidate", nil, "target invalid after mutation")
				}
				return revalidate(raw)
			}

			res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
				s.HotkeyIDs = []string{idH1}
				s.MappingIDs = []string{"EyeL"}
				s.CopyAssets = true
			}), nil)

			var ee *models.EngineError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, "revalidate", ee.Check)
			assert.True(t, ee.RolledBack)
			assert.False(t, ee.Untouched)
			assert.True(t, res.RolledBack)
			assert.False(t, res.Success)
			assert.False(t, res.Applied)

			assert.Contains(t, string(seen), "EyeL")
			assert.Equal(t, before, readFile(t, f.dstPath))
			assert.NoFileExists(t, filepath.Join(f.dstDir, "smile.exp3.json"))
			assert.FileExists(t, res.BackupPath)
		})
	}
}

func TestApplyTransfer_BackupFailureLeavesTargetUntouched(t *testing.T) {
	f := setupTest(t, []hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}}, []string{"EyeL"}, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "smile.exp3.json"), []byte(`{}`), 0o644))
	before := readFile(t, f.dstPath)

	// A directory where the first backup should go makes the backup step fail.
	require.NoError(t, os.MkdirAll(filepath.Join(backup.OriginalPath(f.dstPath), "occupied"), 0o755))

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1}
		s.MappingIDs = []string{"EyeL"}
		s.CopyAssets = true
		s.RequireBackup = true
	}), nil)

	var ee *models.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, models.KindIO, ee.Kind)
	assert.Equal(t, "backup", ee.Check)
	assert.True(t, ee.Untouched)
	assert.False(t, ee.RolledBack)
	assert.False(t, res.Success)
	assert.False(t, res.Applied)
	assert.Empty(t, res.BackupPath)

	assert.Equal(t, before, readFile(t, f.dstPath))
	assert.NoFileExists(t, filepath.Join(f.dstDir, "smile.exp3.json"))
	// Only the blocking directory; no timestamped backup was written.
	assert.Equal(t, 1, backupCount(t, f.dstDir))
}

func TestApplyTransfer_AssetShadowedInTarget(t *testing.T) {
	f := setupTest(t, []hk{{idH1, "H1", "ToggleExpression", "smile.exp3.json"}}, nil, nil, nil)
	srcAsset := filepath.Join(f.srcDir, "Expressions", "smile.exp3.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(srcAsset), 0o755))
	require.NoError(t, os.WriteFile(srcAsset, []byte(`{"Type":"source"}`), 0o644))
	// A different file of the same name sits in the target's model folder,
	// which is searched before Expressions/.
	shadow := filepath.Join(f.dstDir, "smile.exp3.json")
	require.NoError(t, os.WriteFile(shadow, []byte(`{"Type":"target"}`), 0o644))

	res, err := f.engine.ApplyTransfer(context.Background(), f.srcPath, f.dstPath, spec(func(s *models.TransferSpec) {
		s.HotkeyIDs = []string{idH1}
		s.CopyAssets = true
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCopied)

	doc, err := document.Parse(readFile(t, f.dstPath))
	require.NoError(t, err)
	h := doc.Hotkey(idH1)
	require.NotNil(t, h)
	assert.Equal(t, "Expressions/smile.exp3.json", h.File())

	resolved, ok := document.ResolveAsset(f.dstDir, h.File())
	require.True(t, ok)
	assert.Equal(t, `{"Type":"source"}`, string(readFile(t, resolved)))
	assert.Equal(t, `{"Type":"target"}`, string(readFile(t, shadow)))
}
