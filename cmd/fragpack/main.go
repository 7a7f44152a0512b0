package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/fragpack/cmd/fragpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd   `cmd:"" help:"Resolve the configuration and bundle the project"`
		Serve   commands.ServeCmd   `cmd:"" help:"Run the development server with live reload"`
		Inspect commands.InspectCmd `cmd:"" help:"Print the resolved configuration as YAML"`
		List    commands.ListCmd    `cmd:"" help:"List available modes, presets and plugins"`
		Debug   bool                `help:"Enable debug mode." env:"FRAGPACK_DEBUG"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("fragpack"),
		kong.Description("Layered build configuration for esbuild."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
