package batch

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"satwater/internal/mask"
	"satwater/internal/postprocess"
	"satwater/internal/raster"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ManifestEntry represents one tile in the output manifest.
type ManifestEntry struct {
	Source    string  `json:"source"`
	Image     string  `json:"image"`
	Mask      string  `json:"mask"`
	Coverage  float64 `json:"water_percentage"`
	Regions   int     `json:"water_regions"`
	MeanIndex float64 `json:"mean_index"`
}

// WriteManifest writes the tiles of all successful results to path. Image and
// mask paths are stored relative to the manifest's directory.
func WriteManifest(path string, results []Result) error {
	root := filepath.Dir(path)
	entries := []ManifestEntry{}
	for _, r := range results {
		for _, t := range r.Tiles {
			entries = append(entries, ManifestEntry{
				Source:    filepath.Base(r.Source),
				Image:     relTo(root, t.Image),
				Mask:      relTo(root, t.Mask),
				Coverage:  t.Coverage,
				Regions:   t.Regions,
				MeanIndex: t.MeanIndex,
			})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "batch: write manifest %s", path)
}

// tileStats measures a tile and its mask. The mean index is 0 for tiles
// without a spectral index or that cannot be reread.
func tileStats(tilePath string, m *image.Gray) TileRecord {
	rec := TileRecord{
		Coverage: mask.Coverage(m),
		Regions:  len(postprocess.Regions(m)),
	}

	src, err := raster.Open(tilePath)
	if err != nil {
		return rec
	}
	defer src.Close()

	img, err := src.ReadWindow(image.Rect(0, 0, src.Width(), src.Height()))
	if err != nil {
		return rec
	}
	if idx := mask.Index(img, src.Layout()); len(idx) > 0 {
		rec.MeanIndex = stat.Mean(idx, nil)
	}
	return rec
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
