package assets

import (
	"context"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

type analyzeOptions struct {
	Verbose bool `koanf:"verbose"`
	// report file written next to the output, empty to only log
	Report string `koanf:"report"`
}

type analyzePlugin struct {
	opts analyzeOptions
}

func newAnalyzePlugin(options map[string]any) (Plugin, error) {
	opts := analyzeOptions{Report: "analyze.txt"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return &analyzePlugin{opts: opts}, nil
}

func (a *analyzePlugin) Name() string { return "analyze" }

func (a *analyzePlugin) Stage() Stage { return StageFinalize }

func (a *analyzePlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	report := api.AnalyzeMetafile(out.Metafile, api.AnalyzeMetafileOptions{
		Verbose: a.opts.Verbose,
	})

	var total int64
	for _, info := range out.Metadata.Outputs {
		total += info.Bytes
	}
	zerolog.Ctx(ctx).Info().Int("outputs", len(out.Metadata.Outputs)).Int64("bytes", total).Msg("Bundle analysis")
	zerolog.Ctx(ctx).Debug().Msg(report)

	if a.opts.Report == "" {
		return nil
	}

	target := filepath.Join(out.Outdir, a.opts.Report)
	if err := os.WriteFile(target, []byte(report), 0o644); err != nil { //nolint:gosec
		return err
	}
	out.AddFile(target)
	return nil
}
