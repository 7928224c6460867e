package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Header is one name/value pair. Duplicate names are legal and retained.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header multimap. Lookup is case-insensitive;
// iteration preserves insertion order, duplicates included.
type Headers []Header

// Get returns the first value for name, matched case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			return hd.Value, true
		}
	}
	return "", false
}

// Values returns every value for name in insertion order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			out = append(out, hd.Value)
		}
	}
	return out
}

// Add appends a header, keeping earlier entries for the same name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// MarshalJSON writes the multimap as a JSON object. Names keep their
// first-occurrence order; a name with several values becomes an array.
func (h Headers) MarshalJSON() ([]byte, error) {
	type group struct {
		name   string
		values []string
	}
	var groups []group
	index := make(map[string]int)
	for _, hd := range h {
		key := strings.ToLower(hd.Name)
		if i, ok := index[key]; ok {
			groups[i].values = append(groups[i].values, hd.Value)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, group{name: hd.Name, values: []string{hd.Value}})
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(g.name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v []byte
		if len(g.values) == 1 {
			v, err = json.Marshal(g.values[0])
		} else {
			v, err = json.Marshal(g.values)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string or string-array values,
// preserving the object's key order and expanding arrays into duplicates.
func (h *Headers) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("headers: expected JSON object")
	}
	var out Headers
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("headers: expected string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var values []string
			if err := json.Unmarshal(raw, &values); err != nil {
				return err
			}
			for _, v := range values {
				out = append(out, Header{Name: key, Value: v})
			}
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		out = append(out, Header{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}
