package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Object is a JSON object that remembers key order and keeps every value as
// the raw bytes it was read from, so fields the engine never touches are
// written back exactly as they came in.
type Object struct {
	keys []string
	vals map[string]json.RawMessage
	// rawKeys holds the quoted key exactly as read, escapes included.
	rawKeys map[string][]byte
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{vals: make(map[string]json.RawMessage), rawKeys: make(map[string][]byte)}
}

// ParseObject decodes raw, which must hold a single JSON object. A key that
// appears twice is an error.
func ParseObject(raw []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	obj := NewObject()
	for dec.More() {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if obj.Has(key) {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		obj.Set(key, val)
		if rk := quotedKey(raw[start:dec.InputOffset()]); rk != nil {
			obj.rawKeys[key] = rk
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	// Anything but whitespace after the closing brace is a defect.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after object")
	}
	return obj, nil
}

// quotedKey extracts the quoted key from the bytes between the previous
// token and the end of the key's value.
func quotedKey(span []byte) []byte {
	i := bytes.IndexByte(span, '"')
	if i < 0 {
		return nil
	}
	// Scan to the closing quote, skipping escaped characters.
	for j := i + 1; j < len(span); j++ {
		switch span[j] {
		case '\\':
			j++
		case '"':
			return append([]byte(nil), span[i:j+1]...)
		}
	}
	return nil
}

// Keys returns the keys in document order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len is the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.vals[key]
	return ok
}

// Get returns the raw value of key.
func (o *Object) Get(key string) (json.RawMessage, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set replaces the value of key in place, or appends it when new.
func (o *Object) Set(key string, val json.RawMessage) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = val
}

// SetValue marshals v and stores it under key.
func (o *Object) SetValue(key string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	o.Set(key, raw)
	return nil
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	delete(o.rawKeys, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// String returns the value of key when it is a JSON string.
func (o *Object) String(key string) (string, bool) {
	raw, ok := o.vals[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// SetString stores s under key.
func (o *Object) SetString(key, s string) {
	raw, _ := marshal(s)
	o.Set(key, raw)
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:    make([]string, len(o.keys)),
		vals:    make(map[string]json.RawMessage, len(o.vals)),
		rawKeys: make(map[string][]byte, len(o.rawKeys)),
	}
	copy(c.keys, o.keys)
	for k, v := range o.vals {
		c.vals[k] = append(json.RawMessage(nil), v...)
	}
	for k, v := range o.rawKeys {
		c.rawKeys[k] = v
	}
	return c
}

// MarshalJSON writes the fields in order with their raw values.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, ok := o.rawKeys[k]
		if !ok {
			var err error
			if kb, err = marshal(k); err != nil {
				return nil, err
			}
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := o.vals[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// rawKind returns the JSON kind of a raw value: 'o'bject, 'a'rray, 's'tring,
// 'n'umber, 'b'ool, 'z' for null, 0 for empty.
func rawKind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	switch raw[0] {
	case '{':
		return 'o'
	case '[':
		return 'a'
	case '"':
		return 's'
	case 't', 'f':
		return 'b'
	case 'n':
		return 'z'
	default:
		return 'n'
	}
}

// splitArray returns the raw elements of a JSON array.
func splitArray(raw json.RawMessage) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}

// joinArray is the inverse of splitArray.
func joinArray(elems []json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
