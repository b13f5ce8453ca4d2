package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

const sampleDoc = `{
  "Version": 1,
  "Name": "Hiyori",
  "ModelID": "0123456789abcdef0123456789abcdef",
  "FileReferences": {
    "Icon": "icon.png",
    "Model": "Hiyori.model3.json"
  },
  "Hotkeys": [
    {
      "HotkeyID": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
      "Name": "Smile",
      "Action": "ToggleExpression",
      "File": "smile.exp3.json",
      "Triggers": {
        "Trigger1": "N1",
        "ScreenButton": -1
      }
    }
  ],
  "ParameterSettings": [
    {
      "Name": "Eye Open Left",
      "Input": "EyeOpenLeft",
      "OutputLive2D": "ParamEyeLOpen",
      "Smoothing": 10.50
    }
  ],
  "FutureField": {
    "Nested": [],
    "Text": "a<b>&c ü"
  }
}
`

func TestParseSerialize_RoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "Hiyori", doc.Name())
	assert.Equal(t, "0123456789abcdef0123456789abcdef", doc.ModelID())
	require.Len(t, doc.Hotkeys, 1)
	assert.Equal(t, "Smile", doc.Hotkeys[0].Name())
	assert.Equal(t, ActionToggleExpression, doc.Hotkeys[0].Action().Kind)
	require.Len(t, doc.Mappings, 1)
	assert.Equal(t, "ParamEyeLOpen", doc.Mappings[0].Output())

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(out))
}

func TestSerialize_PreservesLayout(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"compact", `{"Version":1,"Name":"A","ModelID":"0123456789abcdef0123456789abcdef","Hotkeys":[]}`},
		{"escaped keys", `{"Version":1,"Name":"A","ModelID":"0123456789abcdef0123456789abcdef","K\u00fcnstler":"x","Tab\tKey":{"\"q\"":1}}`},
		{"four spaces", "{\n    \"Version\": 1,\n    \"Name\": \"A\",\n    \"ModelID\": \"0123456789abcdef0123456789abcdef\"\n}"},
		{"bom and crlf", "\xEF\xBB\xBF{\r\n\t\"Version\": 1,\r\n\t\"Name\": \"A\",\r\n\t\"ModelID\": \"0123456789abcdef0123456789abcdef\"\r\n}\r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.raw))
			require.NoError(t, err)
			out, err := Serialize(doc)
			require.NoError(t, err)
			assert.Equal(t, tc.raw, string(out))
		})
	}
}

func TestParse_FailsClosed(t *testing.T) {
	const id = `"ModelID": "0123456789abcdef0123456789abcdef"`
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not an object", `[1,2]`, "document"},
		{"truncated", `{"Version": 1,`, "document"},
		{"missing model id", `{"Version": 1, "Name": "A"}`, FieldModelID},
		{"missing version", `{"Name": "A", ` + id + `}`, FieldVersion},
		{"malformed model id", `{"Version": 1, "Name": "A", "ModelID": "ABC"}`, FieldModelID},
		{"hotkeys not a list", `{"Version": 1, "Name": "A", ` + id + `, "Hotkeys": "x"}`, FieldHotkeys},
		{"mapping not an object", `{"Version": 1, "Name": "A", ` + id + `, "ParameterSettings": [1]}`, FieldParameters},
		{"trailing garbage", `{"Version": 1, "Name": "A", ` + id + `}}`, "document"},
		{"duplicate key", `{"Version": 1, "Name": "A", "Name": "B", ` + id + `}`, "document"},
		{"duplicate hotkey field", `{"Version": 1, "Name": "A", ` + id + `, "Hotkeys": [{"Name": "a", "Name": "b"}]}`, FieldHotkeys},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.raw))
			assert.Nil(t, doc)
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Equal(t, models.KindStructural, verr.Kind)
			assert.Equal(t, tc.field, verr.Errors[0].Field)
		})
	}
}

func TestValidate(t *testing.T) {
	raw := strings.Replace(sampleDoc, `"Hotkeys": [`, `"Hotkeys": [
    {"HotkeyID": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Name": "Dup", "Action": "ToggleExpression"},
    {"HotkeyID": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Name": "Odd", "Action": "SpinAround", "Payload": {"x": 1}},
    {"HotkeyID": "cccccccccccccccccccccccccccccccc", "Action": "RemoveAllExpressions"},`, 1)
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)

	dir := t.TempDir()
	rep := Validate(doc, ValidateOptions{AssetDir: dir})

	assert.False(t, rep.OK())
	checks := map[string]string{}
	for _, is := range rep.Errors {
		checks[is.Check] = is.Element
	}
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", checks["unique_id"])
	assert.Equal(t, "cccccccccccccccccccccccccccccccc", checks["name_present"])

	warnChecks := map[string]string{}
	for _, is := range rep.Warnings {
		warnChecks[is.Check] = is.Element
	}
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", warnChecks["action_kind"])
	assert.Contains(t, warnChecks, "asset_exists")

	// Unknown actions survive serialization untouched.
	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Action": "SpinAround"`)
	assert.Contains(t, string(out), `"Payload": {`)
}

func TestValidate_AssetResolution(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Expressions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Expressions", "smile.exp3.json"), []byte(`{}`), 0o644))

	rep := Validate(doc, ValidateOptions{AssetDir: dir})
	assert.True(t, rep.OK())
	assert.Empty(t, rep.Warnings)

	path, ok := ResolveAsset(dir, "smile.exp3.json")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Expressions", "smile.exp3.json"), path)

	_, ok = ResolveAsset(dir, "../smile.exp3.json")
	assert.False(t, ok)
}

func TestDocument_AppendAndReparse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	h := doc.Hotkeys[0].Clone()
	id, err := doc.NewHotkeyID(nil)
	require.NoError(t, err)
	h.SetID(id)
	doc.Hotkeys = append(doc.Hotkeys, h)

	m := doc.Mappings[0].Clone()
	m.SetName("Eye Open Left (2)")
	doc.Mappings = append(doc.Mappings, m)

	out, err := Serialize(doc)
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Len(t, again.Hotkeys, 2)
	assert.NotNil(t, again.Hotkey(id))
	assert.NotNil(t, again.Mapping("Eye Open Left (2)"))
	assert.True(t, Validate(again, ValidateOptions{}).OK())

	// The original hotkey is untouched by edits to the clone.
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", doc.Hotkeys[0].ID())
}

func TestKnownParameters(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	dir := t.TempDir()

	known, ok := KnownParameters(doc, dir)
	assert.True(t, ok)
	assert.Equal(t, map[string]bool{"ParamEyeLOpen": true}, known)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Hiyori.model3.json"),
		[]byte(`{"Version":3,"FileReferences":{"DisplayInfo":"Hiyori.cdi3.json"}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Hiyori.cdi3.json"),
		[]byte(`{"Parameters":[{"Id":"ParamAngleX"},{"Id":"ParamMouthOpenY"}]}`), 0o644))

	known, ok = KnownParameters(doc, dir)
	assert.True(t, ok)
	assert.True(t, known["ParamAngleX"])
	assert.True(t, known["ParamMouthOpenY"])
	assert.True(t, known["ParamEyeLOpen"])
}
