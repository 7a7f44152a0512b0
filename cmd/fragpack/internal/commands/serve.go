package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/fragpack/internal/buildconfig"
	"github.com/wolfeidau/fragpack/internal/devserver"
	"github.com/wolfeidau/fragpack/internal/fragment"
)

type ServeCmd struct {
	ProjectFlags `embed:""`
	Listen       string `help:"Listen address, overrides devServer host and port" env:"FRAGPACK_LISTEN"`
	NoWatch      bool   `help:"Do not reload when fragment files change"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, done := setup(ctx, globals, c.Tracing)
	defer done()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := c.settings(buildconfig.ModeDevelopment)
	if err != nil {
		return err
	}

	opts := devserver.Options{
		Root:   s.Root,
		Listen: c.Listen,
		Resolve: func(ctx context.Context) (fragment.Fragment, error) {
			return resolve(ctx, s)
		},
	}
	if !c.NoWatch {
		opts.FragmentsDir = s.FragmentsDir()
	}

	if err := devserver.New(opts).Run(ctx); err != nil {
		return failure(ctx, err, "Dev server failed")
	}
	return nil
}
