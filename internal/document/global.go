package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Global is the parsed global settings document. The four typed lists are
// interpreted; every other field is kept verbatim in Root.
type Global struct {
	Root   *Object
	Format Format

	lists map[string][]*Object
	had   map[string]bool
}

// ParseGlobal decodes a global document, failing closed like Parse.
func ParseGlobal(raw []byte) (*Global, error) {
	body, bom := stripBOM(raw)
	root, err := ParseObject(body)
	if err != nil {
		return nil, structural("document", fmt.Sprintf("not a JSON object: %v", err))
	}

	g := &Global{
		Root:   root,
		Format: detectFormat(body, bom),
		lists:  make(map[string][]*Object),
		had:    make(map[string]bool),
	}
	verr := &models.ValidationError{Kind: models.KindStructural}
	for _, name := range models.SettingLists {
		raw, ok := root.Get(name)
		if !ok {
			continue
		}
		g.had[name] = true
		elems, err := objectList(raw)
		if err != nil {
			verr.Add(name, err.Error())
			continue
		}
		for i, e := range elems {
			if _, ok := e.String("Key"); !ok {
				verr.Add(fmt.Sprintf("%s[%d].Key", name, i), "missing or not a string")
			}
			if !e.Has("Value") {
				verr.Add(fmt.Sprintf("%s[%d].Value", name, i), "missing required field")
			}
		}
		g.lists[name] = elems
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return g, nil
}

// Settings returns every setting grouped by list.
func (g *Global) Settings() models.SettingsSet {
	return g.Filter(nil)
}

// Filter returns the settings whose key match accepts; nil accepts all.
func (g *Global) Filter(match func(key string) bool) models.SettingsSet {
	var set models.SettingsSet
	for _, name := range models.SettingLists {
		list := set.List(name)
		*list = []models.Setting{}
		for _, e := range g.lists[name] {
			key := str(e, "Key")
			if match != nil && !match(key) {
				continue
			}
			val, _ := e.Get("Value")
			*list = append(*list, models.Setting{Key: key, Value: append(json.RawMessage(nil), val...)})
		}
	}
	return set
}

// Lookup returns the raw value of key in the named list.
func (g *Global) Lookup(list, key string) (json.RawMessage, bool) {
	for _, e := range g.lists[list] {
		if str(e, "Key") == key {
			return e.Get("Value")
		}
	}
	return nil, false
}

// Upsert outcomes.
const (
	Unchanged = "unchanged"
	Updated   = "updated"
	Added     = "added"
)

// Upsert sets key in the named list, updating in place or appending.
func (g *Global) Upsert(list, key string, value json.RawMessage) (string, error) {
	if g.lists == nil {
		g.lists = make(map[string][]*Object)
		g.had = make(map[string]bool)
	}
	if !isSettingList(list) {
		return "", fmt.Errorf("unknown settings list %q", list)
	}
	for _, e := range g.lists[list] {
		if str(e, "Key") != key {
			continue
		}
		cur, _ := e.Get("Value")
		if equalJSON(cur, value) {
			return Unchanged, nil
		}
		e.Set("Value", value)
		return Updated, nil
	}
	e := NewObject()
	e.SetString("Key", key)
	e.Set("Value", value)
	g.lists[list] = append(g.lists[list], e)
	return Added, nil
}

// Clone returns a deep copy.
func (g *Global) Clone() *Global {
	c := &Global{Root: g.Root.Clone(), Format: g.Format, lists: make(map[string][]*Object), had: make(map[string]bool)}
	for name, elems := range g.lists {
		for _, e := range elems {
			c.lists[name] = append(c.lists[name], e.Clone())
		}
	}
	for k, v := range g.had {
		c.had[k] = v
	}
	return c
}

// SerializeGlobal writes the document back using its detected layout.
func SerializeGlobal(g *Global) ([]byte, error) {
	root := g.Root.Clone()
	for _, name := range models.SettingLists {
		elems := g.lists[name]
		if !g.had[name] && len(elems) == 0 {
			continue
		}
		raws := make([]json.RawMessage, 0, len(elems))
		for _, e := range elems {
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			raws = append(raws, b)
		}
		root.Set(name, joinArray(raws))
	}
	return render(root, g.Format)
}

// ValidateGlobal reports empty and duplicate keys per list.
func ValidateGlobal(g *Global) models.Report {
	var rep models.Report
	for _, name := range models.SettingLists {
		seen := make(map[string]bool)
		for i, e := range g.lists[name] {
			key := str(e, "Key")
			element := fmt.Sprintf("%s[%d]", name, i)
			if key == "" {
				rep.AddError(models.KindValidation, element, "key_present", "empty setting key")
				continue
			}
			if seen[key] {
				rep.AddError(models.KindValidation, name+"."+key, "unique_key", "duplicate setting key")
			}
			seen[key] = true
		}
	}
	return rep
}

func isSettingList(name string) bool {
	for _, n := range models.SettingLists {
		if n == name {
			return true
		}
	}
	return false
}

// equalJSON compares two raw values ignoring insignificant whitespace.
func equalJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
