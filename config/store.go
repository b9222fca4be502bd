package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Layer is one configuration source. Keys are lower-cased and nested by ".".
type Layer struct {
	Source Source
	Name   string
	Values map[string]any
}

// Store is an immutable stack of layers, lowest precedence first.
// A lookup is answered by the highest layer that defines the key.
// Sub-trees are not merged across layers.
type Store struct {
	layers []Layer
}

func NewStore(layers ...Layer) *Store {
	s := &Store{layers: make([]Layer, 0, len(layers))}
	for _, l := range layers {
		if l.Values == nil {
			l.Values = map[string]any{}
		}
		s.layers = append(s.layers, l)
	}
	return s
}

// FromMap builds a single layer store, mostly useful in tests.
func FromMap(source Source, values map[string]any) *Store {
	return NewStore(Layer{Source: source, Name: string(source), Values: normalizeMap(values)})
}

func (s *Store) Layers() []Layer {
	return s.layers
}

func (s *Store) Lookup(key string) (any, bool) {
	v, _, ok := s.LookupSource(key)
	return v, ok
}

func (s *Store) LookupSource(key string) (any, Source, bool) {
	path := splitKey(key)
	if len(path) == 0 {
		return nil, "", false
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := walk(s.layers[i].Values, path); ok {
			return v, s.layers[i].Source, true
		}
	}
	return nil, "", false
}

// GetInt reports ok=false when the key is absent. The error is set when
// the key is present but the value is not an integer.
func (s *Store) GetInt(key string) (int64, bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	n, err := AsInt(v)
	return n, true, err
}

func (s *Store) GetFloat(key string) (float64, bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	f, err := AsFloat(v)
	return f, true, err
}

func (s *Store) GetBool(key string) (bool, bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return false, false, nil
	}
	b, err := AsBool(v)
	return b, true, err
}

func (s *Store) GetString(key string) (string, bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return "", false, nil
	}
	str, err := AsString(v)
	return str, true, err
}

// Tree returns the value stored under key, or for the empty key the view of
// every top-level key resolved independently.
func (s *Store) Tree(key string) (any, bool) {
	if splitKey(key) != nil {
		return s.Lookup(key)
	}
	root := map[string]any{}
	for _, l := range s.layers {
		for k, v := range l.Values {
			root[k] = v
		}
	}
	return root, true
}

// Unmarshal decodes the value under key into out using mapstructure tags.
// The empty key decodes the whole store.
func (s *Store) Unmarshal(key string, out any) (bool, error) {
	v, ok := s.Tree(key)
	if !ok {
		return false, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return true, err
	}
	return true, dec.Decode(v)
}

// Keys lists every leaf key defined by any layer.
func (s *Store) Keys() []string {
	seen := map[string]struct{}{}
	for _, l := range s.layers {
		collectKeys(l.Values, "", seen)
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collectKeys(m map[string]any, prefix string, seen map[string]struct{}) {
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
			collectKeys(sub, full, seen)
			continue
		}
		seen[full] = struct{}{}
	}
}

func splitKey(key string) []string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

func walk(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, p := range path {
		sub, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = sub[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		sub, ok := m[p].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[p] = sub
		}
		m = sub
	}
	m[path[len(path)-1]] = v
}

func AsInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x > math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("%T is not an integer", v)
}

func AsFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("%T is not a float", v)
}

func AsBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", x)
	}
	return false, fmt.Errorf("%T is not a boolean", v)
}

func AsString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%T is not a string", v)
}
