package assets

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

type manifestOptions struct {
	Filename string `koanf:"filename"`
}

// ManifestEntry describes one emitted file.
type ManifestEntry struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// manifestPlugin writes a JSON map from output URL to size and checksum.
type manifestPlugin struct {
	opts manifestOptions
}

func newManifestPlugin(options map[string]any) (Plugin, error) {
	opts := manifestOptions{Filename: "manifest.json"}
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return &manifestPlugin{opts: opts}, nil
}

func (m *manifestPlugin) Name() string { return "manifest" }

func (m *manifestPlugin) Stage() Stage { return StageFinalize }

func (m *manifestPlugin) AfterBuild(ctx context.Context, out *BuildOutput) error {
	target := filepath.Join(out.Outdir, m.opts.Filename)

	manifest := make(map[string]ManifestEntry, len(out.Files))
	for _, file := range out.Files {
		if file == target {
			continue
		}
		rel, err := filepath.Rel(out.Outdir, file)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(file) //nolint:gosec
		if err != nil {
			return err
		}

		manifest[out.Config.PublicPath+filepath.ToSlash(rel)] = ManifestEntry{
			Size:     int64(len(data)),
			Checksum: checksum(data),
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec
		return err
	}
	out.AddFile(target)
	return nil
}

// checksum is the base58 encoded CRC-64/NVME of data.
func checksum(data []byte) string {
	h := crc64nvme.New()
	_, _ = h.Write(data)

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:])
}
