package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-keyed map that remembers insertion order.
//
// The zero value is an empty map ready to use. An empty map is always held in
// its zero form (nil slice, nil index) so that reflect.DeepEqual treats every
// empty map alike; Clone and Delete preserve that.
//
// Setting an existing key replaces its value in place without moving it.
type OrderedMap[V any] struct {
	keys []string
	vals map[string]V
}

// Entry is one key/value pair of an OrderedMap, as returned by Entries.
type Entry[V any] struct {
	Key   string
	Value V
}

// Set inserts or replaces the value for key.
func (m *OrderedMap[V]) Set(key string, val V) {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
}

// SetDefault stores val only when key is absent. It reports whether it stored.
func (m *OrderedMap[V]) SetDefault(key string, val V) bool {
	if m.Has(key) {
		return false
	}
	m.Set(key, val)
	return true
}

// Get returns the value for key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m OrderedMap[V]) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// Delete removes key, keeping the order of the remaining keys.
func (m *OrderedMap[V]) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
	if len(m.keys) == 0 {
		m.keys, m.vals = nil, nil
	}
}

// IsZero reports whether the map is empty; yaml.v3 consults it for omitempty.
func (m OrderedMap[V]) IsZero() bool {
	return len(m.keys) == 0
}

// Len returns the number of entries.
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m OrderedMap[V]) Keys() []string {
	if len(m.keys) == 0 {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in insertion order.
func (m OrderedMap[V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.vals[k])
	}
	return out
}

// Entries returns the key/value pairs in insertion order.
// Templates iterate maps through this method.
func (m OrderedMap[V]) Entries() []Entry[V] {
	out := make([]Entry[V], 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry[V]{Key: k, Value: m.vals[k]})
	}
	return out
}

// Clone returns a shallow copy of m; values are copied by assignment.
func (m OrderedMap[V]) Clone() OrderedMap[V] {
	var out OrderedMap[V]
	for _, k := range m.keys {
		out.Set(k, m.vals[k])
	}
	return out
}

// MarshalJSON writes the map as a JSON object in insertion order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	*m = OrderedMap[V]{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var val V
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		m.Set(key, val)
	}
	_, err = dec.Token()
	return err
}

// MarshalYAML writes the map as a YAML mapping in insertion order.
func (m OrderedMap[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		var val yaml.Node
		if err := val.Encode(m.vals[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&val,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a YAML mapping, keeping the document's key order.
func (m *OrderedMap[V]) UnmarshalYAML(value *yaml.Node) error {
	*m = OrderedMap[V]{}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var val V
		if err := valNode.Decode(&val); err != nil {
			return fmt.Errorf("key %q: %w", keyNode.Value, err)
		}
		m.Set(keyNode.Value, val)
	}
	return nil
}
