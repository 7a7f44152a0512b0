package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type copyPattern struct {
	From string `koanf:"from"`
	To   string `koanf:"to"`
}

type copyOptions struct {
	Patterns []copyPattern `koanf:"patterns"`
}

type copyPlugin struct {
	opts copyOptions
}

func newCopyPlugin(options map[string]any) (Plugin, error) {
	var opts copyOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	for i, p := range opts.Patterns {
		if p.From == "" {
			return nil, fmt.Errorf("patterns[%d]: from is required", i)
		}
		if filepath.IsAbs(p.To) || strings.HasPrefix(filepath.Clean(p.To), "..") {
			return nil, fmt.Errorf("patterns[%d]: to must stay inside the output directory", i)
		}
	}
	return &copyPlugin{opts: opts}, nil
}

func (c *copyPlugin) Name() string { return "copy" }

func (c *copyPlugin) Stage() Stage { return StageEmit }

func (c *copyPlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	for _, p := range c.opts.Patterns {
		src := filepath.Join(out.Root, p.From)

		to := p.To
		if to == "" || strings.HasSuffix(to, "/") {
			to = filepath.Join(to, filepath.Base(p.From))
		}
		dst := filepath.Join(out.Outdir, to)

		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", p.From, err)
		}
		out.AddFile(dst)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	_, err = io.Copy(f, in)
	return err
}
