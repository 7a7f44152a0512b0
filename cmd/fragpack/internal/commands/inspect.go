package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/fragpack/internal/assets"
	"github.com/wolfeidau/fragpack/internal/buildconfig"
	"gopkg.in/yaml.v3"
)

type InspectCmd struct {
	ProjectFlags `embed:""`
	Validate     bool `help:"Also check that the configuration can drive a build"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, done := setup(ctx, globals, c.Tracing)
	defer done()

	s, err := c.settings(buildconfig.ModeProduction)
	if err != nil {
		return err
	}

	frag, err := resolve(ctx, s)
	if err != nil {
		return failure(ctx, err, "Failed to resolve configuration")
	}

	if c.Validate {
		if _, err := assets.Decode(frag); err != nil {
			return failure(ctx, err, "Invalid configuration")
		}
	}

	enc := yaml.NewEncoder(globals.out())
	enc.SetIndent(2)
	if err := enc.Encode(frag); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	return enc.Close()
}
