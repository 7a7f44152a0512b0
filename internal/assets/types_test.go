package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMetafile = `{
  "outputs": {
    "dist/index.js": {
      "entryPoint": "src/index.js",
      "cssBundle": "dist/index.css",
      "imports": [
        {"path": "dist/chunk-A.js", "kind": "import-statement"},
        {"path": "dist/lazy.js", "kind": "dynamic-import"},
        {"path": "https://cdn.example.com/lib.js", "kind": "import-statement"}
      ],
      "bytes": 120
    },
    "dist/index.css": {"entryPoint": "src/index.js", "bytes": 40},
    "dist/chunk-A.js": {
      "imports": [{"path": "dist/chunk-B.js", "kind": "import-statement"}],
      "bytes": 30
    },
    "dist/chunk-B.js": {
      "imports": [{"path": "dist/chunk-A.js", "kind": "import-statement"}],
      "bytes": 20
    },
    "dist/lazy.js": {"entryPoint": "src/lazy.js", "bytes": 10}
  }
}`

func TestLoadScripts(t *testing.T) {
	meta, err := ParseMetadata(sampleMetafile)
	require.NoError(t, err)

	page, err := meta.LoadScripts("src/index.js", "dist", "/static/")
	require.NoError(t, err)

	require.Equal(t, "/static/index.js", page.Entry)
	require.Equal(t, []string{"/static/chunk-A.js", "/static/chunk-B.js"}, page.Preloads)
	require.Equal(t, []string{"/static/index.css"}, page.Styles)
}

func TestLoadScripts_missingEntry(t *testing.T) {
	meta, err := ParseMetadata(sampleMetafile)
	require.NoError(t, err)

	_, err = meta.LoadScripts("src/other.js", "dist", "/")
	require.ErrorContains(t, err, "entrypoint not found")

	var empty *BuildMetadata
	_, err = empty.LoadScripts("src/index.js", "dist", "/")
	require.ErrorContains(t, err, "not built yet")
}
