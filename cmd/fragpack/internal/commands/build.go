package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/assets"
	"github.com/wolfeidau/fragpack/internal/buildconfig"
)

type BuildCmd struct {
	ProjectFlags `embed:""`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, done := setup(ctx, globals, b.Tracing)
	defer done()

	s, err := b.settings(buildconfig.ModeProduction)
	if err != nil {
		return err
	}

	frag, err := resolve(ctx, s)
	if err != nil {
		return failure(ctx, err, "Failed to resolve configuration")
	}

	cfg, err := assets.Decode(frag)
	if err != nil {
		return failure(ctx, err, "Invalid configuration")
	}

	pipeline, err := assets.New(cfg, s.Root)
	if err != nil {
		return failure(ctx, err, "Failed to create asset pipeline")
	}

	res, err := pipeline.Build(ctx)
	if err != nil {
		return failure(ctx, err, "Build failed")
	}

	zerolog.Ctx(ctx).Info().Str("outdir", pipeline.Outdir()).Int("files", len(res.Files)).Msg("Done")
	fmt.Fprintf(globals.out(), "Built %d files into %s in %s\n", len(res.Files), cfg.Outdir, res.Duration.Round(time.Millisecond))
	return nil
}
