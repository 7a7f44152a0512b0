package assets

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Stage orders post-build plugins. Plugins in an earlier stage always run
// first; within a stage the configured order is kept.
type Stage int

const (
	// StageEmit plugins add files to the output directory
	StageEmit Stage = iota
	// StageDocument plugins render pages that reference emitted files
	StageDocument
	// StageFinalize plugins inspect or transform the complete output
	StageFinalize
)

// Plugin is a post-build step configured by name in the plugins list.
type Plugin interface {
	Name() string
	Stage() Stage
	AfterBuild(ctx context.Context, out *BuildOutput) error
}

// BuildOutput is the shared state handed to each plugin after esbuild has
// written its output.
type BuildOutput struct {
	Config   Config
	Root     string
	Outdir   string
	Metafile string
	Metadata *BuildMetadata
	// LiveReload is set when running under the dev server
	LiveReload bool
	// Files holds absolute paths of every emitted file; plugins append to it
	Files []string
	// ExtraScripts are script URLs added to rendered pages
	ExtraScripts []string
}

// AddFile records a file written by a plugin.
func (o *BuildOutput) AddFile(path string) {
	if !slices.Contains(o.Files, path) {
		o.Files = append(o.Files, path)
	}
}

// Factory creates a plugin from its options.
type Factory func(options map[string]any) (Plugin, error)

var factories = map[string]Factory{
	"html":     newHTMLPlugin,
	"copy":     newCopyPlugin,
	"hmr":      newHMRPlugin,
	"analyze":  newAnalyzePlugin,
	"compress": newCompressPlugin,
	"manifest": newManifestPlugin,
}

// PluginNames returns the names that can be used in the plugins list.
func PluginNames() []string {
	return slices.Sorted(maps.Keys(factories))
}

func loadPlugins(specs []PluginSpec) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(specs))
	for _, spec := range specs {
		factory, ok := factories[spec.Name]
		if !ok {
			return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownPlugin, spec.Name, PluginNames())
		}
		p, err := factory(spec.Options)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", spec.Name, err)
		}
		plugins = append(plugins, p)
	}

	slices.SortStableFunc(plugins, func(a, b Plugin) int {
		return int(a.Stage()) - int(b.Stage())
	})
	return plugins, nil
}

func decodeOptions(options map[string]any, target any) error {
	if len(options) == 0 {
		return nil
	}
	if err := decodeMap(options, target); err != nil {
		return fmt.Errorf("%w: options: %w", ErrInvalidConfig, err)
	}
	return nil
}
