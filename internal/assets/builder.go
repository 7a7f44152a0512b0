package assets

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/wolfeidau/fragpack/internal/assets"

// Pipeline manages the asset build process and post-build plugins
type Pipeline struct {
	config   Config
	root     string
	plugins  []Plugin
	metadata *BuildMetadata
	mu       sync.RWMutex
}

// New creates a new asset pipeline for the project rooted at root.
func New(config Config, root string) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	plugins, err := loadPlugins(config.Plugins)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:  config,
		root:    absRoot,
		plugins: plugins,
	}, nil
}

// Config returns the configuration the pipeline was created with.
func (p *Pipeline) Config() Config {
	return p.config
}

// Outdir is the absolute output directory.
func (p *Pipeline) Outdir() string {
	return filepath.Join(p.root, p.config.Outdir)
}

// Options translates the configuration into esbuild build options.
func (p *Pipeline) Options() api.BuildOptions {
	loader := make(map[string]api.Loader, len(p.config.Rules))
	for _, r := range p.config.Rules {
		loader[r.Test] = loaders[r.Loader]
	}

	return api.BuildOptions{
		AbsWorkingDir:     p.root,
		EntryPoints:       []string{p.config.Entry},
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		JSX:               api.JSXAutomatic,
		Outdir:            p.config.Outdir,
		PublicPath:        p.config.PublicPath,
		Format:            api.FormatESModule,
		Target:            targets[p.config.Target],
		Loader:            loader,
		Define:            p.config.Defines(),
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         sourcemaps[p.config.Sourcemap],
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}
}

// Build runs esbuild once followed by the post-build plugins.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "assets.Build")
	defer span.End()

	started := time.Now()
	zerolog.Ctx(ctx).Info().Str("entry", p.config.Entry).Str("outdir", p.config.Outdir).Msg("Building assets")

	result := api.Build(p.Options())

	res, err := p.finish(ctx, result, false, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("outputs", len(res.Files)))
	return res, nil
}

// Watch starts an esbuild context that rebuilds on source changes. onBuild
// is called after every build, including the first, once plugins have run.
// The caller must Dispose the returned context.
func (p *Pipeline) Watch(ctx context.Context, onBuild func(*Result, error)) (api.BuildContext, error) {
	var started time.Time

	opts := p.Options()
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "fragpack-post-build",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				telemetry.GetMetrics().RebuildsTotal.Add(ctx, 1)
				res, err := p.finish(ctx, *result, true, started)
				onBuild(res, err)
				return api.OnEndResult{}, nil
			})
		},
	})

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return nil, fmt.Errorf("create esbuild context: %w", ctxErr)
	}

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		buildCtx.Dispose()
		return nil, fmt.Errorf("start watch: %w", err)
	}

	return buildCtx, nil
}

// Metadata returns the metadata of the last successful build.
func (p *Pipeline) Metadata() *BuildMetadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata
}

func (p *Pipeline) finish(ctx context.Context, result api.BuildResult, liveReload bool, started time.Time) (*Result, error) {
	log := zerolog.Ctx(ctx)
	m := telemetry.GetMetrics()
	modeAttr := metric.WithAttributes(attribute.String("mode", p.config.Mode))

	m.BuildsTotal.Add(ctx, 1, modeAttr)

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Str("location", location(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("location", location(msg)).Msg("Build error")
		}
		m.BuildErrorsTotal.Add(ctx, 1, modeAttr)
		return nil, fmt.Errorf("%w: %s", ErrBuildFailed, result.Errors[0].Text)
	}

	metadata, err := ParseMetadata(result.Metafile)
	if err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}

	out := &BuildOutput{
		Config:     p.config,
		Root:       p.root,
		Outdir:     p.Outdir(),
		Metafile:   result.Metafile,
		Metadata:   metadata,
		LiveReload: liveReload,
	}
	for _, outputPath := range slices.Sorted(maps.Keys(metadata.Outputs)) {
		out.AddFile(filepath.Join(p.root, filepath.FromSlash(outputPath)))
	}

	if p.config.Metafile {
		metaPath := filepath.Join(out.Outdir, "meta.json")
		if err := os.WriteFile(metaPath, []byte(result.Metafile), 0600); err != nil {
			return nil, err
		}
		out.AddFile(metaPath)
	}

	for _, plugin := range p.plugins {
		if err := plugin.AfterBuild(ctx, out); err != nil {
			m.PluginErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin.Name())))
			return nil, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
		}
	}

	p.mu.Lock()
	p.metadata = metadata
	p.mu.Unlock()

	res := &Result{
		Metadata: metadata,
		Metafile: result.Metafile,
		Files:    out.Files,
		Duration: time.Since(started),
	}

	m.OutputFilesTotal.Add(ctx, int64(len(res.Files)), modeAttr)
	m.BuildDuration.Record(ctx, float64(res.Duration.Milliseconds()), modeAttr)

	for _, file := range res.Files {
		log.Debug().Str("file", file).Msg("Built file")
	}
	log.Info().Int("files", len(res.Files)).Dur("duration", res.Duration).Msg("Build complete")

	return res, nil
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}
