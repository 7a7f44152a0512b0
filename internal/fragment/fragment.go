// Package fragment models partial build configuration as an immutable tree of
// maps, sequences and scalars, and merges fragments with fixed precedence.
package fragment

import (
	"fmt"
	"reflect"
	"slices"
)

// Kind identifies which variant a Fragment holds.
type Kind uint8

const (
	KindScalar Kind = iota
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return "scalar"
	}
}

// Fragment is a configuration tree node. The zero value is a nil scalar.
//
// Fragments are never mutated after construction; every operation that
// changes a fragment returns a new one.
type Fragment struct {
	kind   Kind
	scalar any
	keys   []string
	fields map[string]Fragment
	items  []Fragment
}

// Entry is a single key/value pair used to build map fragments.
type Entry struct {
	Key   string
	Value Fragment
}

// E is shorthand for an Entry.
func E(key string, value Fragment) Entry {
	return Entry{Key: key, Value: value}
}

// Empty returns a map fragment with no keys.
func Empty() Fragment {
	return Fragment{kind: KindMap, fields: map[string]Fragment{}}
}

// Map builds a map fragment. A repeated key keeps its first position and its
// last value.
func Map(entries ...Entry) Fragment {
	f := Fragment{
		kind:   KindMap,
		keys:   make([]string, 0, len(entries)),
		fields: make(map[string]Fragment, len(entries)),
	}
	for _, e := range entries {
		if _, ok := f.fields[e.Key]; !ok {
			f.keys = append(f.keys, e.Key)
		}
		f.fields[e.Key] = e.Value
	}
	return f
}

// Seq builds an ordered sequence fragment.
func Seq(items ...Fragment) Fragment {
	return Fragment{kind: KindSeq, items: slices.Clone(items)}
}

// Scalar wraps a leaf value. Integer types are normalised to int64 and
// float32 to float64 so that equal values compare equal regardless of the
// decoder that produced them.
//
// Maps, slices and fragments passed to Scalar are converted with FromAny so
// they keep their map or sequence kind and merge accordingly; a nested value
// FromAny cannot represent panics, as MustFromAny does.
func Scalar(v any) Fragment {
	switch v.(type) {
	case Fragment, map[string]any, []any, []string:
		return MustFromAny(v)
	default:
		return leaf(v)
	}
}

func leaf(v any) Fragment {
	return Fragment{kind: KindScalar, scalar: normalise(v)}
}

// String, Bool and Int are typed Scalar helpers.
func String(s string) Fragment { return Scalar(s) }
func Bool(b bool) Fragment     { return Scalar(b) }
func Int(i int) Fragment       { return Scalar(i) }

// Strings builds a sequence of string scalars.
func Strings(values ...string) Fragment {
	items := make([]Fragment, len(values))
	for i, v := range values {
		items[i] = String(v)
	}
	return Fragment{kind: KindSeq, items: items}
}

// FromAny converts a decoded YAML/JSON style tree into a Fragment.
func FromAny(v any) (Fragment, error) {
	switch t := v.(type) {
	case Fragment:
		return t, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			child, err := FromAny(t[k])
			if err != nil {
				return Fragment{}, fmt.Errorf("key %q: %w", k, err)
			}
			entries = append(entries, E(k, child))
		}
		return Map(entries...), nil
	case []any:
		items := make([]Fragment, 0, len(t))
		for i, item := range t {
			child, err := FromAny(item)
			if err != nil {
				return Fragment{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, child)
		}
		return Fragment{kind: KindSeq, items: items}, nil
	case []string:
		return Strings(t...), nil
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, float32, float64:
		return leaf(t), nil
	default:
		return Fragment{}, fmt.Errorf("unsupported fragment value of type %T", v)
	}
}

// MustFromAny is FromAny for static definitions; it panics on error.
func MustFromAny(v any) Fragment {
	f, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Fragment) Kind() Kind        { return f.kind }
func (f Fragment) IsMap() bool       { return f.kind == KindMap }
func (f Fragment) IsSeq() bool       { return f.kind == KindSeq }
func (f Fragment) IsScalar() bool    { return f.kind == KindScalar }
func (f Fragment) Value() any        { return f.scalar }
func (f Fragment) Keys() []string    { return slices.Clone(f.keys) }
func (f Fragment) Items() []Fragment { return slices.Clone(f.items) }

// Len is the number of keys of a map or items of a sequence.
func (f Fragment) Len() int {
	switch f.kind {
	case KindMap:
		return len(f.keys)
	case KindSeq:
		return len(f.items)
	default:
		return 0
	}
}

// Get returns the value stored under key in a map fragment.
func (f Fragment) Get(key string) (Fragment, bool) {
	if f.kind != KindMap {
		return Fragment{}, false
	}
	v, ok := f.fields[key]
	return v, ok
}

// Lookup walks nested maps along path.
func (f Fragment) Lookup(path ...string) (Fragment, bool) {
	cur := f
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return Fragment{}, false
		}
		cur = next
	}
	return cur, true
}

// With returns a copy of the map fragment with key set to value.
func (f Fragment) With(key string, value Fragment) Fragment {
	entries := make([]Entry, 0, f.Len()+1)
	if f.kind == KindMap {
		for _, k := range f.keys {
			entries = append(entries, E(k, f.fields[k]))
		}
	}
	entries = append(entries, E(key, value))
	return Map(entries...)
}

// ToAny converts the fragment back into plain Go values.
func (f Fragment) ToAny() any {
	switch f.kind {
	case KindMap:
		m := make(map[string]any, len(f.keys))
		for _, k := range f.keys {
			m[k] = f.fields[k].ToAny()
		}
		return m
	case KindSeq:
		s := make([]any, len(f.items))
		for i, item := range f.items {
			s[i] = item.ToAny()
		}
		return s
	default:
		return f.scalar
	}
}

// Equal reports structural equality. Map key order is not significant.
func (f Fragment) Equal(other Fragment) bool {
	if f.kind != other.kind {
		return false
	}
	switch f.kind {
	case KindMap:
		if len(f.keys) != len(other.keys) {
			return false
		}
		for _, k := range f.keys {
			ov, ok := other.fields[k]
			if !ok || !f.fields[k].Equal(ov) {
				return false
			}
		}
		return true
	case KindSeq:
		return slices.EqualFunc(f.items, other.items, Fragment.Equal)
	default:
		return scalarEqual(f.scalar, other.scalar)
	}
}

// scalarEqual compares leaf values; unlike == it does not panic when a leaf
// holds an uncomparable dynamic type.
func scalarEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func (f Fragment) String() string {
	return fmt.Sprintf("%v", f.ToAny())
}

func normalise(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t) // #nosec G115 - configuration values are small
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
