package devserver

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/fragpack/internal/assets"
)

func newStaticServer(t *testing.T, fallback bool) *Server {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"dist/index.html":      "<html>app</html>",
		"dist/app.js":          "console.log('app');",
		"dist/big.js":          strings.Repeat("console.log('fragpack');\n", 400),
		"dist/docs/index.html": "<html>docs</html>",
		"src/robots.txt":       "User-agent: *",
		"src/app.js":           "shadowed by the output",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	cfg := assets.DefaultConfig()
	cfg.DevServer = &assets.DevServer{
		Host:               "localhost",
		Port:               8080,
		ContentBase:        "src",
		HistoryAPIFallback: fallback,
		Stats:              "normal",
		AllowedOrigins:     []string{"*"},
	}

	pipeline, err := assets.New(cfg, root)
	require.NoError(t, err)

	s := New(Options{Root: root})
	s.config = cfg
	s.pipeline = pipeline
	return s
}

func TestHandler_static(t *testing.T) {
	handler := newStaticServer(t, true).Handler(zerolog.Nop())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "output file", method: http.MethodGet, path: "/app.js", wantStatus: http.StatusOK, wantBody: "console.log('app');"},
		{name: "content base", method: http.MethodGet, path: "/robots.txt", wantStatus: http.StatusOK, wantBody: "User-agent: *"},
		{name: "root index", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "<html>app</html>"},
		{name: "directory index", method: http.MethodGet, path: "/docs", wantStatus: http.StatusOK, wantBody: "<html>docs</html>"},
		{name: "history fallback", method: http.MethodGet, path: "/users/42", wantStatus: http.StatusOK, wantBody: "<html>app</html>"},
		{name: "missing asset", method: http.MethodGet, path: "/missing.js", wantStatus: http.StatusNotFound},
		{name: "post", method: http.MethodPost, path: "/app.js", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestStaticHandler_traversal(t *testing.T) {
	s := newStaticServer(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(s.opts.Root, "secret.txt"), []byte("secret"), 0o600))

	static := &staticHandler{dirs: s.dirs, notFound: http.NotFoundHandler()}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.URL.Path = "/../secret.txt"
	w := httptest.NewRecorder()
	static.ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_noFallback(t *testing.T) {
	handler := newStaticServer(t, false).Handler(zerolog.Nop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_gzip(t *testing.T) {
	handler := newStaticServer(t, true).Handler(zerolog.Nop())

	r := httptest.NewRequest(http.MethodGet, "/big.js", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("console.log('fragpack');\n", 400), string(body))
}

func TestHandler_cors(t *testing.T) {
	handler := newStaticServer(t, true).Handler(zerolog.Nop())

	r := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	r.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
