package assets

import (
	"encoding/json"
	"errors"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int64        `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// ParseMetadata decodes an esbuild metafile.
func ParseMetadata(metafile string) (*BuildMetadata, error) {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// Result describes a finished build.
type Result struct {
	Metadata *BuildMetadata
	Metafile string
	// Absolute paths of every file written, including plugin output
	Files    []string
	Duration time.Duration
}

// PageAssets are the URLs a page needs for one entry point.
type PageAssets struct {
	// Entry script URL
	Entry string
	// Chunks imported by the entry, in dependency order
	Preloads []string
	// Stylesheet URLs
	Styles []string
}

// LoadScripts returns the assets needed for the given entrypoint. Output
// paths in the metafile are relative to the working directory; urls are
// rebuilt relative to outdir and prefixed with publicPath.
func (m *BuildMetadata) LoadScripts(entryPointPath, outdir, publicPath string) (*PageAssets, error) {
	if m == nil {
		return nil, errors.New("assets not built yet, call Build() first")
	}

	entryPointPath = filepath.ToSlash(filepath.Clean(entryPointPath))
	outdir = filepath.ToSlash(filepath.Clean(outdir))

	toURL := func(outputPath string) string {
		rel := strings.TrimPrefix(strings.TrimPrefix(outputPath, outdir), "/")
		return publicPath + rel
	}

	// sorted so that the result does not depend on map iteration order
	outputPaths := slices.Sorted(maps.Keys(m.Outputs))

	for _, outputPath := range outputPaths {
		info := m.Outputs[outputPath]
		if path.Ext(outputPath) != ".js" || path.Clean(info.EntryPoint) != entryPointPath {
			continue
		}

		page := &PageAssets{Entry: toURL(outputPath)}
		visited := map[string]bool{outputPath: true}
		m.addDependencies(info, visited, func(p string) {
			page.Preloads = append(page.Preloads, toURL(p))
		})
		if info.CSSBundle != "" {
			page.Styles = append(page.Styles, toURL(info.CSSBundle))
		}
		return page, nil
	}

	return nil, errors.New("entrypoint not found in metadata")
}

func (m *BuildMetadata) addDependencies(output OutputInfo, visited map[string]bool, add func(string)) {
	for _, imp := range output.Imports {
		if imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		chunk, exists := m.Outputs[imp.Path]
		if !exists {
			// external import
			continue
		}
		visited[imp.Path] = true
		add(imp.Path)
		m.addDependencies(chunk, visited, add)
	}
}
