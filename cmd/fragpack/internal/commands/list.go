package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/fragpack/internal/assets"
	"github.com/wolfeidau/fragpack/internal/buildconfig"
)

type ListCmd struct {
	ProjectFlags `embed:""`
}

func (l *ListCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := l.settings(buildconfig.ModeProduction)
	if err != nil {
		return err
	}

	reg, err := registry(s)
	if err != nil {
		return err
	}

	out := globals.out()
	fmt.Fprintf(out, "Modes:    %s\n", strings.Join(reg.Modes(), ", "))
	fmt.Fprintf(out, "Presets:  %s\n", strings.Join(reg.Presets(), ", "))
	fmt.Fprintf(out, "Plugins:  %s\n", strings.Join(assets.PluginNames(), ", "))
	return nil
}
