// filepath: internal/document/document.go
// Package document parses, validates and serializes model (.vtube.json) and
// global (vts_config.json) documents without losing fields it does not know.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/idgen"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Top-level field names of a model document.
const (
	FieldVersion        = "Version"
	FieldName           = "Name"
	FieldModelID        = "ModelID"
	FieldHotkeys        = "Hotkeys"
	FieldParameters     = "ParameterSettings"
	FieldFileReferences = "FileReferences"
)

// ActionKind is the closed set of hotkey actions the engine understands.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionToggleExpression
	ActionTriggerAnimation
	ActionChangeIdleAnimation
	ActionRemoveAllExpressions
)

var actionTags = map[string]ActionKind{
	"ToggleExpression":     ActionToggleExpression,
	"TriggerAnimation":     ActionTriggerAnimation,
	"ChangeIdleAnimation":  ActionChangeIdleAnimation,
	"RemoveAllExpressions": ActionRemoveAllExpressions,
}

// Action is a hotkey action. Unknown tags are kept as-is and the hotkey
// payload is copied without interpretation.
type Action struct {
	Kind ActionKind
	Tag  string
}

// ParseAction classifies a raw action tag.
func ParseAction(tag string) Action {
	return Action{Kind: actionTags[tag], Tag: tag}
}

// Known reports whether the action belongs to the closed set.
func (a Action) Known() bool { return a.Kind != ActionUnknown }

// UsesFile reports whether the action normally points at an asset file.
// Unknown actions are treated as file users when they carry a File.
func (a Action) UsesFile() bool {
	return a.Kind != ActionRemoveAllExpressions
}

func (a Action) String() string { return a.Tag }

// Hotkey is one entry of the Hotkeys list. Only the fields below are
// interpreted; triggers, folder, flags and the rest ride along in Fields.
type Hotkey struct {
	Fields *Object
}

func (h *Hotkey) ID() string     { return str(h.Fields, "HotkeyID") }
func (h *Hotkey) Name() string   { return str(h.Fields, "Name") }
func (h *Hotkey) File() string   { return str(h.Fields, "File") }
func (h *Hotkey) Action() Action { return ParseAction(str(h.Fields, "Action")) }

// SetID replaces the hotkey id.
func (h *Hotkey) SetID(id string) { h.Fields.SetString("HotkeyID", id) }

// SetFile rewrites the asset reference.
func (h *Hotkey) SetFile(file string) { h.Fields.SetString("File", file) }

// Clone returns an independent copy.
func (h *Hotkey) Clone() *Hotkey { return &Hotkey{Fields: h.Fields.Clone()} }

// ParameterMapping is one entry of ParameterSettings, identified by Name.
type ParameterMapping struct {
	Fields *Object
}

func (m *ParameterMapping) Name() string   { return str(m.Fields, "Name") }
func (m *ParameterMapping) Input() string  { return str(m.Fields, "Input") }
func (m *ParameterMapping) Output() string { return str(m.Fields, "OutputLive2D") }

// SetName renames the mapping.
func (m *ParameterMapping) SetName(name string) { m.Fields.SetString("Name", name) }

// Clone returns an independent copy.
func (m *ParameterMapping) Clone() *ParameterMapping {
	return &ParameterMapping{Fields: m.Fields.Clone()}
}

// Document is a parsed model document.
type Document struct {
	Root     *Object
	Format   Format
	Hotkeys  []*Hotkey
	Mappings []*ParameterMapping

	hadHotkeys  bool
	hadMappings bool
}

// Name returns the display name.
func (d *Document) Name() string { return str(d.Root, FieldName) }

// ModelID returns the model identifier.
func (d *Document) ModelID() string { return str(d.Root, FieldModelID) }

// SetName changes the display name.
func (d *Document) SetName(name string) { d.Root.SetString(FieldName, name) }

// SetModelID changes the model identifier.
func (d *Document) SetModelID(id string) { d.Root.SetString(FieldModelID, id) }

// FileReferences returns the FileReferences object, or nil when absent or
// not an object.
func (d *Document) FileReferences() *Object {
	raw, ok := d.Root.Get(FieldFileReferences)
	if !ok || rawKind(raw) != 'o' {
		return nil
	}
	obj, err := ParseObject(raw)
	if err != nil {
		return nil
	}
	return obj
}

// Hotkey returns the hotkey with the given id.
func (d *Document) Hotkey(id string) *Hotkey {
	for _, h := range d.Hotkeys {
		if h.ID() == id {
			return h
		}
	}
	return nil
}

// Mapping returns the mapping with the given name.
func (d *Document) Mapping(name string) *ParameterMapping {
	for _, m := range d.Mappings {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// HotkeyIDs returns the set of hotkey ids in use.
func (d *Document) HotkeyIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Hotkeys))
	for _, h := range d.Hotkeys {
		ids[h.ID()] = true
	}
	return ids
}

// MappingNames returns the set of mapping names in use.
func (d *Document) MappingNames() map[string]bool {
	names := make(map[string]bool, len(d.Mappings))
	for _, m := range d.Mappings {
		names[m.Name()] = true
	}
	return names
}

// NewHotkeyID returns a fresh id that no hotkey of the document uses.
func (d *Document) NewHotkeyID(reserved map[string]bool) (string, error) {
	used := d.HotkeyIDs()
	return idgen.Unique(func(id string) bool { return used[id] || reserved[id] })
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		Root:        d.Root.Clone(),
		Format:      d.Format,
		hadHotkeys:  d.hadHotkeys,
		hadMappings: d.hadMappings,
	}
	for _, h := range d.Hotkeys {
		c.Hotkeys = append(c.Hotkeys, h.Clone())
	}
	for _, m := range d.Mappings {
		c.Mappings = append(c.Mappings, m.Clone())
	}
	return c
}

// Parse decodes a model document. It never returns a partial document: any
// structural defect yields a *models.ValidationError naming the field.
func Parse(raw []byte) (*Document, error) {
	body, bom := stripBOM(raw)
	root, err := ParseObject(body)
	if err != nil {
		return nil, structural("document", fmt.Sprintf("not a JSON object: %v", err))
	}

	verr := &models.ValidationError{Kind: models.KindStructural}
	for _, f := range []string{FieldVersion, FieldName, FieldModelID} {
		if !root.Has(f) {
			verr.Add(f, "missing required field")
		}
	}
	if root.Has(FieldName) {
		if _, ok := root.String(FieldName); !ok {
			verr.Add(FieldName, "must be a string")
		}
	}
	if root.Has(FieldModelID) {
		id, ok := root.String(FieldModelID)
		if !ok || !idgen.IsValid(id) {
			verr.Add(FieldModelID, "malformed identifier, want 32 lowercase hex characters")
		}
	}

	doc := &Document{Root: root, Format: detectFormat(body, bom)}

	if raw, ok := root.Get(FieldHotkeys); ok {
		doc.hadHotkeys = true
		elems, err := objectList(raw)
		if err != nil {
			verr.Add(FieldHotkeys, err.Error())
		}
		for _, e := range elems {
			doc.Hotkeys = append(doc.Hotkeys, &Hotkey{Fields: e})
		}
	}
	if raw, ok := root.Get(FieldParameters); ok {
		doc.hadMappings = true
		elems, err := objectList(raw)
		if err != nil {
			verr.Add(FieldParameters, err.Error())
		}
		for _, e := range elems {
			doc.Mappings = append(doc.Mappings, &ParameterMapping{Fields: e})
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return doc, nil
}

// Serialize writes the document back using its detected layout.
func Serialize(doc *Document) ([]byte, error) {
	root := doc.Root.Clone()
	if doc.hadHotkeys || len(doc.Hotkeys) > 0 {
		elems := make([]json.RawMessage, 0, len(doc.Hotkeys))
		for _, h := range doc.Hotkeys {
			b, err := h.Fields.MarshalJSON()
			if err != nil {
				return nil, err
			}
			elems = append(elems, b)
		}
		root.Set(FieldHotkeys, joinArray(elems))
	}
	if doc.hadMappings || len(doc.Mappings) > 0 {
		elems := make([]json.RawMessage, 0, len(doc.Mappings))
		for _, m := range doc.Mappings {
			b, err := m.Fields.MarshalJSON()
			if err != nil {
				return nil, err
			}
			elems = append(elems, b)
		}
		root.Set(FieldParameters, joinArray(elems))
	}
	return render(root, doc.Format)
}

// objectList splits a raw array whose elements must all be objects.
func objectList(raw json.RawMessage) ([]*Object, error) {
	if rawKind(raw) != 'a' {
		return nil, fmt.Errorf("must be a list")
	}
	elems, err := splitArray(raw)
	if err != nil {
		return nil, err
	}
	out := make([]*Object, 0, len(elems))
	for i, e := range elems {
		if rawKind(e) != 'o' {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		obj, err := ParseObject(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

func structural(field, msg string) *models.ValidationError {
	verr := &models.ValidationError{Kind: models.KindStructural}
	verr.Add(field, msg)
	return verr
}

func str(o *Object, key string) string {
	s, _ := o.String(key)
	return s
}
