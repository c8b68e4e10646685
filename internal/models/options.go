package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Options maps operation identifiers to true, false or an operation-specific
// config payload. Iteration follows insertion order; the zero value is empty
// and ready to use.
type Options struct {
	keys   []string
	values map[string]any
}

// NewOptions builds Options from alternating key/value arguments
func NewOptions(pairs ...any) Options {
	var o Options
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		o.Set(key, pairs[i+1])
	}
	return o
}

// Set stores value under key. Existing keys keep their position.
func (o *Options) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key
func (o Options) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present
func (o Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order
func (o Options) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of entries
func (o Options) Len() int {
	return len(o.keys)
}

// Merge copies every entry of other into o, last write wins
func (o *Options) Merge(other Options) {
	for _, key := range other.keys {
		o.Set(key, other.values[key])
	}
}

// Clone returns an independent copy. Payload values are shared.
func (o Options) Clone() Options {
	var c Options
	c.Merge(o)
	return c
}

// MarshalJSON writes the entries as a JSON object in insertion order
func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal option %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the key order of the document
func (o *Options) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("options must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read option key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("option key must be a string, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to read option %q: %w", key, err)
		}
		o.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}
	return nil
}

// UnmarshalYAML reads a YAML mapping keeping the key order of the document
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: options must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		var value any
		if err := valueNode.Decode(&value); err != nil {
			return fmt.Errorf("line %d: failed to read option %q: %w", valueNode.Line, keyNode.Value, err)
		}
		o.Set(keyNode.Value, value)
	}
	return nil
}
