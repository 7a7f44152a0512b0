package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

var compressibleExts = []string{".js", ".css", ".html", ".json", ".svg", ".map", ".txt"}

type compressOptions struct {
	Level   int `koanf:"level"`
	MinSize int `koanf:"minSize"`
}

// compressPlugin writes a .gz sibling next to every compressible asset so a
// static file server can serve them directly.
type compressPlugin struct {
	opts compressOptions
}

func newCompressPlugin(options map[string]any) (Plugin, error) {
	opts := compressOptions{Level: gzip.BestCompression, MinSize: 1024}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if opts.Level < gzip.HuffmanOnly || opts.Level > gzip.BestCompression {
		return nil, fmt.Errorf("level %d out of range", opts.Level)
	}
	return &compressPlugin{opts: opts}, nil
}

func (c *compressPlugin) Name() string { return "compress" }

func (c *compressPlugin) Stage() Stage { return StageFinalize }

func (c *compressPlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	var written int
	for _, file := range slices.Clone(out.Files) {
		if !slices.Contains(compressibleExts, filepath.Ext(file)) {
			continue
		}

		data, err := os.ReadFile(file) //nolint:gosec
		if err != nil {
			return err
		}
		if len(data) < c.opts.MinSize {
			continue
		}

		target := file + ".gz"
		if err := c.writeGzip(target, data); err != nil {
			return fmt.Errorf("compress %s: %w", file, err)
		}
		out.AddFile(target)
		written++
	}

	zerolog.Ctx(ctx).Debug().Int("files", written).Msg("Compressed assets")
	return nil
}

func (c *compressPlugin) writeGzip(target string, data []byte) error {
	f, err := os.Create(target) //nolint:gosec
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := gzip.NewWriterLevel(f, c.opts.Level)
	if err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}
