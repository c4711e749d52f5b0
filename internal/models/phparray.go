package models

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PHP encodes an empty array as [] whatever it was meant to hold, and a
// list with gaps in its indexes as an object keyed by index. Object and
// List decode both forms.

var (
	jsonNull        = []byte("null")
	jsonEmptyList   = []byte("[]")
	jsonEmptyObject = []byte("{}")
)

// Object is a JSON object keyed by name that also accepts [] and null as empty.
type Object[V any] map[string]V

// UnmarshalJSON implements json.Unmarshaler
func (o *Object[V]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) || bytes.Equal(data, jsonEmptyList) {
		*o = Object[V]{}
		return nil
	}
	var m map[string]V
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*o = m
	return nil
}

// UnmarshalYAML accepts an empty sequence as an empty mapping
func (o *Object[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode && len(node.Content) == 0 {
		*o = Object[V]{}
		return nil
	}
	var m map[string]V
	if err := node.Decode(&m); err != nil {
		return err
	}
	*o = m
	return nil
}

// List is a JSON array that also accepts an object keyed by index.
// Object values are taken in index order.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler
func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, jsonNull):
		*l = nil
		return nil
	case bytes.Equal(data, jsonEmptyObject):
		*l = List[T]{}
		return nil
	case len(data) > 0 && data[0] == '{':
		var m map[string]T
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareIndex)
		out := make(List[T], 0, len(keys))
		for _, k := range keys {
			out = append(out, m[k])
		}
		*l = out
		return nil
	}
	var s []T
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = s
	return nil
}

// compareIndex orders numeric keys by value and puts the rest after them.
func compareIndex(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// cloneObject deep-copies a free-form object
func cloneObject(o Object[any]) Object[any] {
	if o == nil {
		return nil
	}
	return Object[any](CloneValue(map[string]any(o)).(map[string]any))
}
