package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the project settings file looked up when no other is given.
const FileName = "fragpack.yaml"

// Settings select what gets resolved and where the project lives.
type Settings struct {
	// Mode overlay name, e.g. development or production
	Mode string `koanf:"mode"`
	// Presets applied after the mode overlay, in order
	Presets []string `koanf:"presets"`
	// Fragments is the directory holding mode.<name>.yaml and preset.<name>.yaml files
	Fragments string `koanf:"fragments"`
	// Root is the project directory configuration paths are relative to
	Root string `koanf:"root"`
}

// Defaults returns the settings used when neither flags nor the file set a
// value.
func Defaults(mode string) Settings {
	return Settings{
		Mode:      mode,
		Fragments: "fragments",
		Root:      ".",
	}
}

// FragmentsDir is the fragments directory resolved against Root.
func (s Settings) FragmentsDir() string {
	if s.Fragments == "" || filepath.IsAbs(s.Fragments) {
		return s.Fragments
	}
	return filepath.Join(s.Root, s.Fragments)
}

// Load combines flags, the settings file at path and defaults. A field set
// by an earlier source is never overwritten by a later one. A missing file
// is only an error when path is not the default FileName.
func Load(path string, flags, defaults Settings) (Settings, error) {
	fromFile, err := ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && filepath.Base(path) == FileName:
	case err != nil:
		return Settings{}, err
	}

	result := flags
	for _, src := range []Settings{fromFile, defaults} {
		if err := mergo.Merge(&result, src); err != nil {
			return Settings{}, fmt.Errorf("merge settings: %w", err)
		}
	}
	return result, nil
}

// ReadFile reads settings from a YAML file. A relative root in the file is
// taken relative to the file itself.
func ReadFile(path string) (Settings, error) {
	var s Settings
	if path == "" {
		return s, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return s, fmt.Errorf("load settings %s: %w", path, err)
	}
	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("decode settings %s: %w", path, err)
	}

	if s.Root != "" && !filepath.IsAbs(s.Root) {
		s.Root = filepath.Join(filepath.Dir(path), s.Root)
	}
	return s, nil
}
