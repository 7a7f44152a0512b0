package fragment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFromAny(t *testing.T) {
	f, err := FromAny(map[string]any{
		"mode":    "development",
		"minify":  false,
		"plugins": []any{map[string]any{"name": "html"}},
		"devServer": map[string]any{
			"port": 8080,
		},
	})
	require.NoError(t, err)
	require.True(t, f.IsMap())

	port, ok := f.Lookup("devServer", "port")
	require.True(t, ok)
	require.Equal(t, int64(8080), port.Value())

	plugins, ok := f.Get("plugins")
	require.True(t, ok)
	require.True(t, plugins.IsSeq())
	require.Equal(t, 1, plugins.Len())
}

func TestFromAny_unsupported(t *testing.T) {
	_, err := FromAny(map[string]any{"ch": make(chan int)})
	require.ErrorContains(t, err, `key "ch"`)
}

func TestScalar_normalisesNumbers(t *testing.T) {
	require.True(t, Scalar(int32(3)).Equal(Scalar(int64(3))))
	require.True(t, Scalar(uint8(3)).Equal(Int(3)))
	require.False(t, Scalar(3.0).Equal(Int(3)))
}

func TestScalar_composites(t *testing.T) {
	seq := Scalar([]any{"a", 1})
	require.True(t, seq.IsSeq())
	require.True(t, seq.Equal(Seq(String("a"), Int(1))))

	m := Scalar(map[string]any{"port": 8080})
	require.True(t, m.IsMap())
	require.True(t, m.Equal(Map(E("port", Int(8080)))))

	require.True(t, Scalar([]string{"x"}).Equal(Strings("x")))

	merged := Merge(
		Map(E("plugins", Scalar([]any{"a"}))),
		Map(E("plugins", Scalar([]any{"b"}))),
	)
	require.True(t, mustGet(merged, "plugins").Equal(Strings("a", "b")))
}

func TestEqual_uncomparableLeaf(t *testing.T) {
	a := Scalar([]int{1, 2})
	b := Scalar([]int{1, 2})

	require.NotPanics(t, func() { a.Equal(b) })
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(Scalar([]int{1})))
	require.False(t, a.Equal(Int(1)))
}

func TestWith(t *testing.T) {
	base := Map(E("mode", String("production")))
	updated := base.With("minify", Bool(true))

	require.Equal(t, []string{"mode"}, base.Keys())
	require.Equal(t, []string{"mode", "minify"}, updated.Keys())
}

func TestYAML_keepsKeyOrder(t *testing.T) {
	src := `mode: development
entry: src/frontend/index.js
plugins:
  - name: html
    options:
      inject: body
devServer:
  port: 8080
  hot: true
`
	var f Fragment
	require.NoError(t, yaml.Unmarshal([]byte(src), &f))
	require.Equal(t, []string{"mode", "entry", "plugins", "devServer"}, f.Keys())

	out, err := yaml.Marshal(f)
	require.NoError(t, err)

	var again Fragment
	require.NoError(t, yaml.Unmarshal(out, &again))
	require.Equal(t, f.Keys(), again.Keys())
	require.True(t, f.Equal(again))

	devServer, ok := again.Get("devServer")
	require.True(t, ok)
	require.Equal(t, []string{"port", "hot"}, devServer.Keys())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	f, err := ReadFile(empty)
	require.NoError(t, err)
	require.True(t, Empty().Equal(f))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("mode: [unterminated"), 0600))
	_, err = ReadFile(broken)
	require.ErrorContains(t, err, "broken.yaml")
}

func TestReadFile_mergeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.development.yaml")
	src := `defaults: &defaults
  host: localhost
  port: 8080
overrides: &overrides
  port: 9000
  open: true
devServer:
  <<: *defaults
  hot: true
  port: 3000
stacked:
  <<: [*overrides, *defaults]
inline:
  <<: {minify: false}
  target: es2020
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))

	f, err := ReadFile(path)
	require.NoError(t, err)

	devServer, ok := f.Get("devServer")
	require.True(t, ok)
	require.Equal(t, []string{"host", "port", "hot"}, devServer.Keys())
	require.True(t, mustGet(devServer, "port").Equal(Int(3000)))
	require.True(t, mustGet(devServer, "host").Equal(String("localhost")))
	_, hasMergeKey := devServer.Get("<<")
	require.False(t, hasMergeKey)

	stacked, ok := f.Get("stacked")
	require.True(t, ok)
	require.Equal(t, []string{"port", "open", "host"}, stacked.Keys())
	require.True(t, mustGet(stacked, "port").Equal(Int(9000)))

	inline, ok := f.Get("inline")
	require.True(t, ok)
	require.True(t, inline.Equal(Map(E("minify", Bool(false)), E("target", String("es2020")))))
}

func TestReadFile_badMergeValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devServer:\n  <<: 3\n"), 0600))

	_, err := ReadFile(path)
	require.ErrorContains(t, err, "merge value must be a mapping")
}
