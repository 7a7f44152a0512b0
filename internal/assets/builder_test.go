package assets

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTemplate = `<!doctype html>
<html>
<head><title>{{.Title}}</title></head>
<body><div id="root" data-mode="{{.Mode}}"></div></body>
</html>
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"src/index.js":       "import './style.css';\nimport { greet } from './greet.js';\ndocument.body.append(greet('fragpack'));\n",
		"src/greet.js":       "export function greet(name) { return 'hello ' + name; }\n",
		"src/style.css":      "body { margin: 0; font-family: sans-serif; }\n",
		"assets/index.html":  testTemplate,
		"assets/favicon.png": "not really a png",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func testConfig(plugins ...PluginSpec) Config {
	cfg := DefaultConfig()
	cfg.Entry = "src/index.js"
	cfg.Outdir = "dist"
	cfg.Minify = false
	cfg.Plugins = append([]PluginSpec{
		{Name: "html", Options: map[string]any{"template": "assets/index.html", "title": "Test"}},
		{Name: "copy", Options: map[string]any{"patterns": []any{
			map[string]any{"from": "assets/favicon.png", "to": "img/"},
		}}},
	}, plugins...)
	return cfg
}

func TestPipeline_Build(t *testing.T) {
	root := writeProject(t)

	cfg := testConfig(
		PluginSpec{Name: "compress", Options: map[string]any{"minSize": 0}},
		PluginSpec{Name: "manifest"},
	)
	p, err := New(cfg, root)
	require.NoError(t, err)

	res, err := p.Build(t.Context())
	require.NoError(t, err)
	require.NotNil(t, p.Metadata())

	outdir := filepath.Join(root, "dist")
	require.Contains(t, res.Files, filepath.Join(outdir, "index.js"))
	require.Contains(t, res.Files, filepath.Join(outdir, "img", "favicon.png"))

	html, err := os.ReadFile(filepath.Join(outdir, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), "<title>Test</title>")
	require.Contains(t, string(html), `data-mode="production"`)
	require.Contains(t, string(html), `<link rel="stylesheet" href="/index.css">`)
	require.Contains(t, string(html), `<script type="module" src="/index.js"></script>`)
	require.NotContains(t, string(html), "__livereload")

	// compress runs before manifest so the manifest lists the archives
	gz, err := os.Open(filepath.Join(outdir, "index.html.gz"))
	require.NoError(t, err)
	defer gz.Close()
	zr, err := gzip.NewReader(gz)
	require.NoError(t, err)
	unzipped, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, html, unzipped)

	data, err := os.ReadFile(filepath.Join(outdir, "manifest.json"))
	require.NoError(t, err)
	var manifest map[string]ManifestEntry
	require.NoError(t, json.Unmarshal(data, &manifest))

	require.Contains(t, manifest, "/index.html.gz")
	require.NotContains(t, manifest, "/manifest.json")
	entry := manifest["/index.html"]
	require.Equal(t, int64(len(html)), entry.Size)
	require.Equal(t, checksum(html), entry.Checksum)
}

func TestPipeline_Build_syntaxError(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src/index.js"), []byte("export const = ;\n"), 0o600))

	p, err := New(testConfig(), root)
	require.NoError(t, err)

	_, err = p.Build(t.Context())
	require.ErrorIs(t, err, ErrBuildFailed)
	require.Nil(t, p.Metadata())
}

func TestPipeline_Build_metafile(t *testing.T) {
	root := writeProject(t)

	cfg := testConfig(PluginSpec{Name: "analyze", Options: map[string]any{"report": "report.txt"}})
	cfg.Metafile = true
	p, err := New(cfg, root)
	require.NoError(t, err)

	_, err = p.Build(t.Context())
	require.NoError(t, err)

	meta, err := os.ReadFile(filepath.Join(root, "dist", "meta.json"))
	require.NoError(t, err)
	_, err = ParseMetadata(string(meta))
	require.NoError(t, err)

	report, err := os.ReadFile(filepath.Join(root, "dist", "report.txt"))
	require.NoError(t, err)
	require.Contains(t, string(report), "dist/index.js")
}

func TestPipeline_Watch(t *testing.T) {
	root := writeProject(t)

	cfg := testConfig(PluginSpec{Name: "hmr"})
	cfg.DevServer = &DevServer{Host: "localhost", Port: 0, Hot: true, Stats: "normal"}
	p, err := New(cfg, root)
	require.NoError(t, err)

	builds := make(chan error, 4)
	buildCtx, err := p.Watch(t.Context(), func(_ *Result, err error) {
		builds <- err
	})
	require.NoError(t, err)
	defer buildCtx.Dispose()

	select {
	case err := <-builds:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the initial build")
	}

	html, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(html), `<script src="/__livereload.js"></script>`)
	require.FileExists(t, filepath.Join(root, "dist", "__livereload.js"))
}

func TestNew_invalidPath(t *testing.T) {
	_, err := New(testConfig(PluginSpec{Name: "copy", Options: map[string]any{"patterns": []any{
		map[string]any{"from": "a.txt", "to": "../outside.txt"},
	}}}), t.TempDir())
	require.ErrorContains(t, err, "must stay inside the output directory")
}
