package buildconfig

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/fragpack/internal/fragment"
	"github.com/wolfeidau/fragpack/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wolfeidau/fragpack/internal/buildconfig"

// Options selects the mode overlay and presets for a build.
type Options struct {
	Mode    string
	Presets []string
}

// DefaultOptions builds for production with no presets.
func DefaultOptions() Options {
	return Options{Mode: ModeProduction}
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeProduction
	}
	return o
}

// Resolve merges the base fragment, the mode overlay and the presets, in that
// order of increasing precedence.
func (r *Registry) Resolve(ctx context.Context, opts Options) (fragment.Fragment, error) {
	opts = opts.withDefaults()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "buildconfig.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", opts.Mode),
		attribute.StringSlice("presets", opts.Presets),
	)

	zerolog.Ctx(ctx).Info().Str("mode", opts.Mode).Strs("presets", opts.Presets).Msgf("Building for: %s", opts.Mode)

	overlay, err := r.ResolveMode(opts.Mode)
	if err != nil {
		return fragment.Fragment{}, r.failed(ctx, span, err)
	}

	presets, err := r.LoadPresets(opts.Mode, opts.Presets)
	if err != nil {
		return fragment.Fragment{}, r.failed(ctx, span, err)
	}

	r.mu.RLock()
	base := r.base(opts.Mode)
	r.mu.RUnlock()

	return fragment.Merge(base, overlay, presets), nil
}

func (r *Registry) failed(ctx context.Context, span trace.Span, err error) error {
	telemetry.GetMetrics().ResolutionErrorsTotal.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
