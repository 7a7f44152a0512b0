package devserver

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticHandler serves files from the build output first, then from the
// content base. With fallback enabled, unknown extension-less paths get the
// output index.html so client side routing works.
type staticHandler struct {
	dirs     func() (outdir, contentBase string, fallback bool)
	notFound http.Handler
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	outdir, contentBase, fallback := h.dirs()
	name := path.Clean("/" + r.URL.Path)

	for _, dir := range []string{outdir, contentBase} {
		if dir == "" {
			continue
		}
		if serveFile(w, r, filepath.Join(dir, filepath.FromSlash(name))) {
			return
		}
	}

	if fallback && path.Ext(name) == "" && serveFile(w, r, filepath.Join(outdir, "index.html")) {
		return
	}

	h.notFound.ServeHTTP(w, r)
}

// serveFile writes the file at name, or the index.html inside it when name
// is a directory. It reports false when nothing could be served.
func serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		name = filepath.Join(name, "index.html")
		if info, err = os.Stat(name); err != nil || info.IsDir() {
			return false
		}
	}

	f, err := os.Open(name) //nolint:gosec
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return true
		}
		return false
	}
	defer f.Close()

	if strings.HasSuffix(name, ".html") {
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
