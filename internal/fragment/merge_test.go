package fragment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		inputs   []Fragment
		expected Fragment
	}{
		{
			name:     "no inputs",
			inputs:   nil,
			expected: Empty(),
		},
		{
			name:     "single input returned unchanged",
			inputs:   []Fragment{Map(E("mode", String("production")))},
			expected: Map(E("mode", String("production"))),
		},
		{
			name: "right scalar wins",
			inputs: []Fragment{
				Map(E("minify", Bool(true))),
				Map(E("minify", Bool(false))),
			},
			expected: Map(E("minify", Bool(false))),
		},
		{
			name: "sequences concatenate in argument order",
			inputs: []Fragment{
				Map(E("plugins", Strings("html", "copy"))),
				Map(E("plugins", Strings("hmr"))),
				Map(E("plugins", Strings("analyze"))),
			},
			expected: Map(E("plugins", Strings("html", "copy", "hmr", "analyze"))),
		},
		{
			name: "nested maps merge recursively",
			inputs: []Fragment{
				Map(E("devServer", Map(E("host", String("localhost")), E("port", Int(8080))))),
				Map(E("devServer", Map(E("port", Int(9000)), E("hot", Bool(true))))),
			},
			expected: Map(E("devServer", Map(
				E("host", String("localhost")),
				E("port", Int(9000)),
				E("hot", Bool(true)),
			))),
		},
		{
			name: "sequence against scalar is replaced",
			inputs: []Fragment{
				Map(E("entry", Strings("a.js", "b.js"))),
				Map(E("entry", String("c.js"))),
			},
			expected: Map(E("entry", String("c.js"))),
		},
		{
			name: "map against sequence is replaced",
			inputs: []Fragment{
				Map(E("define", Map(E("DEBUG", String("true"))))),
				Map(E("define", Strings("DEBUG"))),
			},
			expected: Map(E("define", Strings("DEBUG"))),
		},
		{
			name: "null scalar still replaces",
			inputs: []Fragment{
				Map(E("devServer", Map(E("port", Int(8080))))),
				Map(E("devServer", Scalar(nil))),
			},
			expected: Map(E("devServer", Scalar(nil))),
		},
		{
			name: "sequences of maps are not merged item by item",
			inputs: []Fragment{
				Map(E("rules", Seq(Map(E("test", String(".css")), E("loader", String("css")))))),
				Map(E("rules", Seq(Map(E("test", String(".css")), E("loader", String("text")))))),
			},
			expected: Map(E("rules", Seq(
				Map(E("test", String(".css")), E("loader", String("css"))),
				Map(E("test", String(".css")), E("loader", String("text"))),
			))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.inputs...)
			require.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestMerge_keyOrder(t *testing.T) {
	left := Map(E("mode", String("production")), E("entry", String("index.js")))
	right := Map(E("devServer", Map()), E("mode", String("development")))

	got := Merge(left, right)
	require.Equal(t, []string{"mode", "entry", "devServer"}, got.Keys())
}

func TestMerge_doesNotMutateInputs(t *testing.T) {
	left := Map(E("plugins", Strings("html")), E("minify", Bool(true)))
	right := Map(E("plugins", Strings("hmr")), E("minify", Bool(false)))

	_ = Merge(left, right)

	require.True(t, Map(E("plugins", Strings("html")), E("minify", Bool(true))).Equal(left))
	require.True(t, Map(E("plugins", Strings("hmr")), E("minify", Bool(false))).Equal(right))
}

func TestMerge_identityDoublesSequences(t *testing.T) {
	a := Map(E("plugins", Strings("html")))

	got := Merge(a, a)
	require.True(t, Map(E("plugins", Strings("html", "html"))).Equal(got))
}

// Property-based tests using rapid

var keys = []string{"mode", "entry", "outdir", "minify", "sourcemap", "plugins", "rules", "devServer"}

func scalarGen() *rapid.Generator[Fragment] {
	return rapid.OneOf(
		rapid.Map(rapid.Bool(), Bool),
		rapid.Map(rapid.IntRange(-100, 100), Int),
		rapid.Map(rapid.SampledFrom([]string{"", "none", "inline", "dist", "index.js"}), String),
		rapid.Just(Scalar(nil)),
	)
}

func flatMapGen(values *rapid.Generator[Fragment]) *rapid.Generator[Fragment] {
	return rapid.Custom(func(t *rapid.T) Fragment {
		n := rapid.IntRange(0, len(keys)).Draw(t, "n")
		entries := make([]Entry, 0, n)
		for i := 0; i < n; i++ {
			key := rapid.SampledFrom(keys).Draw(t, fmt.Sprintf("key%d", i))
			entries = append(entries, E(key, values.Draw(t, fmt.Sprintf("value%d", i))))
		}
		return Map(entries...)
	})
}

func seqGen() *rapid.Generator[Fragment] {
	return rapid.Custom(func(t *rapid.T) Fragment {
		return Seq(rapid.SliceOfN(scalarGen(), 0, 4).Draw(t, "items")...)
	})
}

func mixedGen() *rapid.Generator[Fragment] {
	return flatMapGen(rapid.OneOf(scalarGen(), seqGen(), flatMapGen(scalarGen())))
}

func TestMerge_PropertyBased_KeysOnOneSideSurvive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := mixedGen().Draw(t, "a")
		b := mixedGen().Draw(t, "b")
		merged := Merge(a, b)

		for _, k := range a.Keys() {
			if _, inB := b.Get(k); inB {
				continue
			}
			got, ok := merged.Get(k)
			require.True(t, ok)
			require.True(t, mustGet(a, k).Equal(got))
		}
		for _, k := range b.Keys() {
			if _, inA := a.Get(k); inA {
				continue
			}
			got, ok := merged.Get(k)
			require.True(t, ok)
			require.True(t, mustGet(b, k).Equal(got))
		}
	})
}

func TestMerge_PropertyBased_RightScalarWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := mixedGen().Draw(t, "a")
		b := mixedGen().Draw(t, "b")
		merged := Merge(a, b)

		for _, k := range b.Keys() {
			bv := mustGet(b, k)
			if _, inA := a.Get(k); !inA || !bv.IsScalar() {
				continue
			}
			require.True(t, bv.Equal(mustGet(merged, k)))
		}
	})
}

func TestMerge_PropertyBased_SequencesConcatenate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := mixedGen().Draw(t, "a")
		b := mixedGen().Draw(t, "b")
		merged := Merge(a, b)

		for _, k := range a.Keys() {
			av := mustGet(a, k)
			bv, ok := b.Get(k)
			if !ok || !av.IsSeq() || !bv.IsSeq() {
				continue
			}
			expected := Seq(append(av.Items(), bv.Items()...)...)
			require.True(t, expected.Equal(mustGet(merged, k)))
		}
	})
}

func TestMerge_PropertyBased_IdempotentWithoutSequences(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := flatMapGen(rapid.OneOf(scalarGen(), flatMapGen(scalarGen()))).Draw(t, "a")
		require.True(t, a.Equal(Merge(a, a)))
	})
}

func TestMerge_PropertyBased_AssociativeForScalars(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := flatMapGen(scalarGen()).Draw(t, "a")
		b := flatMapGen(scalarGen()).Draw(t, "b")
		c := flatMapGen(scalarGen()).Draw(t, "c")

		left := Merge(Merge(a, b), c)
		right := Merge(a, Merge(b, c))
		require.True(t, left.Equal(right), "left %s, right %s", left, right)
		require.True(t, left.Equal(Merge(a, b, c)))
	})
}

func mustGet(f Fragment, key string) Fragment {
	v, ok := f.Get(key)
	if !ok {
		panic("missing key " + key)
	}
	return v
}
