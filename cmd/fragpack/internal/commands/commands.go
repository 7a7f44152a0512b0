package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/buildconfig"
	"github.com/wolfeidau/fragpack/internal/fragment"
	"github.com/wolfeidau/fragpack/internal/logger"
	"github.com/wolfeidau/fragpack/internal/settings"
	"github.com/wolfeidau/fragpack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	// Out receives command output, stdout when nil
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// ProjectFlags select the project and the fragments to resolve.
type ProjectFlags struct {
	Config    string   `help:"Project settings file" default:"fragpack.yaml" env:"FRAGPACK_CONFIG"`
	Mode      string   `help:"Mode overlay (development, production or a mode.<name>.yaml fragment)" short:"m" env:"FRAGPACK_MODE"`
	Preset    []string `help:"Preset to apply after the mode, may be repeated" short:"p" env:"FRAGPACK_PRESETS"`
	Fragments string   `help:"Directory holding mode and preset fragment files" env:"FRAGPACK_FRAGMENTS"`
	Root      string   `help:"Project root that configuration paths are relative to" env:"FRAGPACK_ROOT"`
	Tracing   bool     `help:"Export traces and metrics over OTLP" env:"FRAGPACK_TRACING"`
}

// settings merges the flags over the settings file and defaults.
func (p ProjectFlags) settings(defaultMode string) (settings.Settings, error) {
	flags := settings.Settings{
		Mode:      p.Mode,
		Presets:   p.Preset,
		Fragments: p.Fragments,
		Root:      p.Root,
	}
	return settings.Load(p.Config, flags, settings.Defaults(defaultMode))
}

// registry returns the built-in fragments overridden by any fragment files.
func registry(s settings.Settings) (*buildconfig.Registry, error) {
	reg := buildconfig.NewRegistry()
	if err := reg.LoadDir(s.FragmentsDir()); err != nil {
		return nil, err
	}
	return reg, nil
}

func resolve(ctx context.Context, s settings.Settings) (fragment.Fragment, error) {
	reg, err := registry(s)
	if err != nil {
		return fragment.Fragment{}, err
	}
	return reg.Resolve(ctx, buildconfig.Options{Mode: s.Mode, Presets: s.Presets})
}

// setup attaches a logger carrying a fresh build ID to ctx and starts
// telemetry when requested. The returned function must be called on exit.
func setup(ctx context.Context, globals *Globals, tracing bool) (context.Context, func()) {
	log := logger.Setup(globals.Debug)
	ctx, buildID := logger.WithBuildID(ctx, log)

	zerolog.Ctx(ctx).Debug().Str("version", globals.Version).Str("build_id", buildID).Msg("Starting")

	if !tracing {
		return ctx, func() {}
	}

	zerolog.Ctx(ctx).Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "fragpack", globals.Version)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		shutdown = telemetry.Noop()
	}

	return ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

// failure logs err with a trace ID the user can quote when reporting it.
func failure(ctx context.Context, err error, msg string) error {
	traceID := logger.Error(ctx, err, msg)
	return fmt.Errorf("%s (trace id %s): %w", msg, traceID, err)
}
