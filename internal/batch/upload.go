package batch

import (
	"io/fs"
	"os"
	"path/filepath"

	"satwater/internal/archive"
	"satwater/internal/mask"
	"satwater/internal/raster"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Directory and file names inside an upload's output directory.
const (
	TiledDirName  = "tiled_images"
	MaskedDirName = "masked_images"
	ManifestName  = "manifest.json"
)

// Upload processes a zipped folder of geo-rasters: the archive is expanded into
// the output directory, every GeoTIFF found below it is tiled into
// TiledDirName and each tile gets a {tile_stem}_mask.png in MaskedDirName.
// A GeoTIFF that fails contributes neither tiles nor masks.
type Upload struct {
	OutputDir string
	TileSize  int
	Log       logrus.FieldLogger
}

// Process runs the upload flow for the archive at zipPath and writes a manifest.
func (u Upload) Process(zipPath string) (Summary, error) {
	log := u.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	size := u.TileSize
	if size <= 0 {
		size = 256
	}

	tiledDir := filepath.Join(u.OutputDir, TiledDirName)
	maskedDir := filepath.Join(u.OutputDir, MaskedDirName)
	for _, dir := range []string{tiledDir, maskedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Summary{}, errors.Wrapf(err, "batch: create %s", dir)
		}
	}

	if err := archive.Extract(zipPath, u.OutputDir); err != nil {
		return Summary{}, err
	}

	sources, err := geoRasters(u.OutputDir)
	if err != nil {
		return Summary{}, err
	}

	// each GeoTIFF is tiled in scratch and only published with all its masks
	p := New(Config{
		ImageDir: tiledDir,
		MaskDir:  maskedDir,
		TileSize: size,
		Manifest: filepath.Join(u.OutputDir, ManifestName),
		MaskName: mask.Name,
		Log:      log,
	})
	sum := summarize(p.runAll(sources))
	if err := WriteManifest(p.cfg.Manifest, sum.Results); err != nil {
		return sum, err
	}
	log.WithFields(logrus.Fields{"tiles": sum.Total, "failed": sum.Failed}).Info("upload processed")
	return sum, nil
}

// geoRasters walks root for GeoTIFFs, skipping the flow's own output folders.
func geoRasters(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (d.Name() == TiledDirName || d.Name() == MaskedDirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if raster.IsGeo(path) {
			out = append(out, path)
		}
		return nil
	})
	return out, errors.Wrapf(err, "batch: scan %s", root)
}
