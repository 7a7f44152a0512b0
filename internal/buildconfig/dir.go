package buildconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fragpack/internal/fragment"
)

const (
	modeFilePrefix   = "mode."
	presetFilePrefix = "preset."
)

// LoadDir registers file-backed fragments found in dir. Files named
// mode.<name>.yaml register a mode overlay and preset.<name>.yaml a preset,
// replacing any built-in of the same name. A missing directory is ignored.
func (r *Registry) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read fragment dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		kind, name, ok := parseFragmentFilename(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		frag, err := fragment.ReadFile(path)
		if err != nil {
			return err
		}

		switch kind {
		case "mode":
			r.RegisterMode(name, Static(frag))
		case "preset":
			r.RegisterPreset(name, Static(frag))
		}

		log.Debug().Str("kind", kind).Str("name", name).Str("path", path).Msg("Registered fragment file")
	}

	return nil
}

func parseFragmentFilename(filename string) (kind, name string, ok bool) {
	ext := filepath.Ext(filename)
	if ext != ".yaml" && ext != ".yml" {
		return "", "", false
	}
	base := strings.TrimSuffix(filename, ext)

	switch {
	case strings.HasPrefix(base, modeFilePrefix):
		kind, name = "mode", strings.TrimPrefix(base, modeFilePrefix)
	case strings.HasPrefix(base, presetFilePrefix):
		kind, name = "preset", strings.TrimPrefix(base, presetFilePrefix)
	default:
		return "", "", false
	}

	return kind, name, name != ""
}
