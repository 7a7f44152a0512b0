package assets

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/knadh/koanf/v2"
	"github.com/wolfeidau/fragpack/internal/fragment"
)

// keyDelim is used when flattening fragments for decoding. Define keys such
// as "process.env.NODE_ENV" contain dots so the usual "." cannot be used.
const keyDelim = "::"

var (
	// ErrInvalidConfig indicates the merged configuration cannot drive a build
	ErrInvalidConfig = errors.New("invalid build configuration")
	// ErrUnknownPlugin indicates a plugin name with no implementation
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("esbuild failed with errors")
)

type Config struct {
	Mode string `koanf:"mode"`
	// Entry point relative to the project root (e.g., "src/frontend/index.js")
	Entry string `koanf:"entry"`
	// Output directory for built files, relative to the project root
	Outdir string `koanf:"outdir"`
	// URL prefix used for emitted asset references
	PublicPath string `koanf:"publicPath"`
	// Whether to minify output
	Minify bool `koanf:"minify"`
	// none, inline, linked, external or both
	Sourcemap string `koanf:"sourcemap"`
	// Whether to write meta.json next to the output
	Metafile bool   `koanf:"metafile"`
	Target   string `koanf:"target"`
	// Global identifier replacements. Strings are used verbatim as JS
	// expressions; booleans and numbers become the matching JS literal.
	Define map[string]any `koanf:"define"`

	Rules     []Rule       `koanf:"rules"`
	Plugins   []PluginSpec `koanf:"plugins"`
	DevServer *DevServer   `koanf:"devServer"`
}

// Rule maps a file extension to an esbuild loader.
type Rule struct {
	Test   string `koanf:"test"`
	Loader string `koanf:"loader"`
}

// PluginSpec is a plugin instance as it appears in the configuration.
type PluginSpec struct {
	Name    string         `koanf:"name"`
	Options map[string]any `koanf:"options"`
}

type DevServer struct {
	Host               string   `koanf:"host"`
	Port               int      `koanf:"port"`
	ContentBase        string   `koanf:"contentBase"`
	HistoryAPIFallback bool     `koanf:"historyApiFallback"`
	Inline             bool     `koanf:"inline"`
	Hot                bool     `koanf:"hot"`
	Stats              string   `koanf:"stats"`
	AllowedOrigins     []string `koanf:"allowedOrigins"`
}

// Addr is the host:port the dev server listens on.
func (d DevServer) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// LiveReload reports whether pages should reconnect to the reload stream.
func (d DevServer) LiveReload() bool {
	return d.Hot || d.Inline
}

// Decode converts a merged fragment into a validated Config.
func Decode(f fragment.Fragment) (Config, error) {
	tree, ok := f.ToAny().(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("%w: expected a map at the top level, got %s", ErrInvalidConfig, f.Kind())
	}

	var cfg Config
	if err := decodeMap(tree, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Mode:       "production",
		Entry:      "src/frontend/index.js",
		Outdir:     "dist",
		PublicPath: "/",
		Minify:     true,
		Sourcemap:  "none",
	}
}

func (c *Config) applyDefaults() {
	if c.PublicPath == "" {
		c.PublicPath = "/"
	}
	if !strings.HasSuffix(c.PublicPath, "/") {
		c.PublicPath += "/"
	}
	if c.Sourcemap == "" {
		c.Sourcemap = "none"
	}
	if c.DevServer != nil {
		if c.DevServer.Host == "" {
			c.DevServer.Host = "localhost"
		}
		if c.DevServer.Port == 0 {
			c.DevServer.Port = 8080
		}
		if c.DevServer.Stats == "" {
			c.DevServer.Stats = "normal"
		}
		if len(c.DevServer.AllowedOrigins) == 0 {
			c.DevServer.AllowedOrigins = []string{"*"}
		}
	}
}

// Validate checks the fields esbuild cannot default for us.
func (c Config) Validate() error {
	var errs []error

	if c.Entry == "" {
		errs = append(errs, errors.New("entry is required"))
	}
	if c.Outdir == "" {
		errs = append(errs, errors.New("outdir is required"))
	}
	if _, ok := sourcemaps[c.Sourcemap]; !ok {
		errs = append(errs, fmt.Errorf("unknown sourcemap %q", c.Sourcemap))
	}
	if _, ok := targets[c.Target]; !ok {
		errs = append(errs, fmt.Errorf("unknown target %q", c.Target))
	}
	for _, key := range slices.Sorted(maps.Keys(c.Define)) {
		if _, err := defineLiteral(c.Define[key]); err != nil {
			errs = append(errs, fmt.Errorf("define %q: %w", key, err))
		}
	}
	for i, r := range c.Rules {
		if !strings.HasPrefix(r.Test, ".") {
			errs = append(errs, fmt.Errorf("rules[%d]: test must be a file extension, got %q", i, r.Test))
		}
		if _, ok := loaders[r.Loader]; !ok {
			errs = append(errs, fmt.Errorf("rules[%d]: unknown loader %q", i, r.Loader))
		}
	}
	for i, p := range c.Plugins {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plugins[%d]: name is required", i))
		}
	}
	if d := c.DevServer; d != nil {
		if d.Port < 0 || d.Port > 65535 {
			errs = append(errs, fmt.Errorf("devServer: port %d out of range", d.Port))
		}
		if _, ok := statsLevels[d.Stats]; !ok {
			errs = append(errs, fmt.Errorf("devServer: unknown stats %q", d.Stats))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Defines renders Define as the string map esbuild expects.
func (c Config) Defines() map[string]string {
	if len(c.Define) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Define))
	for k, v := range c.Define {
		lit, err := defineLiteral(v)
		if err != nil {
			continue // rejected by Validate
		}
		out[k] = lit
	}
	return out
}

func defineLiteral(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case nil:
		return "null", nil
	default:
		return "", fmt.Errorf("value must be a string, boolean or number, got %T", v)
	}
}

func decodeMap(tree map[string]any, target any) error {
	k := koanf.New(keyDelim)
	if err := k.Load(mapProvider(tree), nil); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return k.Unmarshal("", target)
}

var sourcemaps = map[string]api.SourceMap{
	"none":     api.SourceMapNone,
	"inline":   api.SourceMapInline,
	"linked":   api.SourceMapLinked,
	"external": api.SourceMapExternal,
	"both":     api.SourceMapInlineAndExternal,
}

var targets = map[string]api.Target{
	"":       api.DefaultTarget,
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
}

var loaders = map[string]api.Loader{
	"js":         api.LoaderJS,
	"jsx":        api.LoaderJSX,
	"ts":         api.LoaderTS,
	"tsx":        api.LoaderTSX,
	"json":       api.LoaderJSON,
	"text":       api.LoaderText,
	"css":        api.LoaderCSS,
	"local-css":  api.LoaderLocalCSS,
	"global-css": api.LoaderGlobalCSS,
	"file":       api.LoaderFile,
	"copy":       api.LoaderCopy,
	"dataurl":    api.LoaderDataURL,
	"base64":     api.LoaderBase64,
	"binary":     api.LoaderBinary,
	"empty":      api.LoaderEmpty,
}

// statsLevels maps the dev server stats option to the lowest HTTP status
// that is logged.
var statsLevels = map[string]int{
	"none":        1000,
	"errors-only": 400,
	"minimal":     400,
	"normal":      0,
	"verbose":     0,
}

// MinLoggedStatus returns the lowest response status the dev server logs.
func (d DevServer) MinLoggedStatus() int {
	return statsLevels[d.Stats]
}
