package assets

import (
	"context"
	"os"
	"path/filepath"
)

// LiveReloadPath is the server-sent events endpoint the reload client
// listens on.
const LiveReloadPath = "/__livereload"

const liveReloadScript = `(function () {
  var source = new EventSource("` + LiveReloadPath + `");
  source.addEventListener("reload", function () { location.reload(); });
  source.onerror = function () { console.debug("[fragpack] live reload disconnected"); };
})();
`

type hmrOptions struct {
	Filename string `koanf:"filename"`
}

// hmrPlugin emits the live reload client when running under the dev server.
// Builds outside the dev server are left untouched.
type hmrPlugin struct {
	opts hmrOptions
}

func newHMRPlugin(options map[string]any) (Plugin, error) {
	opts := hmrOptions{Filename: "__livereload.js"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return &hmrPlugin{opts: opts}, nil
}

func (h *hmrPlugin) Name() string { return "hmr" }

func (h *hmrPlugin) Stage() Stage { return StageEmit }

func (h *hmrPlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	if !out.LiveReload || out.Config.DevServer == nil || !out.Config.DevServer.LiveReload() {
		return nil
	}

	target := filepath.Join(out.Outdir, h.opts.Filename)
	if err := os.WriteFile(target, []byte(liveReloadScript), 0o644); err != nil { //nolint:gosec
		return err
	}
	out.AddFile(target)
	out.ExtraScripts = append(out.ExtraScripts, out.Config.PublicPath+filepath.ToSlash(h.opts.Filename))
	return nil
}
