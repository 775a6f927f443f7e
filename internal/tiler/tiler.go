package tiler

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"satwater/internal/raster"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Origin is the top-left pixel of a tile in its source.
type Origin struct {
	X, Y int
}

// Origins lists tile origins for a w×h raster, y outer and x inner.
func Origins(w, h, size int) []Origin {
	if size <= 0 {
		return nil
	}
	var out []Origin
	for y := 0; y < h; y += size {
		for x := 0; x < w; x += size {
			out = append(out, Origin{X: x, Y: y})
		}
	}
	return out
}

// Name returns the tile file name for a source stem at (x, y).
func Name(stem string, x, y int) string {
	return fmt.Sprintf("%s_%d_%d.png", stem, y, x)
}

// Tiler splits rasters into fixed-size PNG tiles.
type Tiler struct {
	Log logrus.FieldLogger
}

// New returns a Tiler logging to the standard logrus logger.
func New() *Tiler {
	return &Tiler{Log: logrus.StandardLogger()}
}

// Tile writes every tile of sourcePath into outputDir and returns the paths in
// traversal order. Edge tiles are clipped, never padded. Read failures are
// returned as *raster.SourceReadError.
func (t *Tiler) Tile(sourcePath string, tileSize int, outputDir string) ([]string, error) {
	if tileSize <= 0 {
		return nil, errors.Errorf("tiler: tile size must be positive, got %d", tileSize)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "tiler: create %s", outputDir)
	}

	src, err := raster.Open(sourcePath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	log := t.logger().WithFields(logrus.Fields{
		"source": sourcePath,
		"layout": src.Layout(),
		"bands":  src.Bands(),
	})
	if geo := src.Geo(); geo != nil {
		log = log.WithField("geotransform", geo.Transform)
	}
	log.Debugf("tiling %dx%d at %d", src.Width(), src.Height(), tileSize)

	stem := raster.Stem(sourcePath)
	origins := Origins(src.Width(), src.Height(), tileSize)
	paths := make([]string, 0, len(origins))
	for _, o := range origins {
		tile, err := src.ReadWindow(image.Rect(o.X, o.Y, o.X+tileSize, o.Y+tileSize))
		if err != nil {
			return paths, err
		}
		out := filepath.Join(outputDir, Name(stem, o.X, o.Y))
		if err := WritePNG(out, tile); err != nil {
			return paths, err
		}
		paths = append(paths, out)
	}

	log.WithField("tiles", len(paths)).Debug("tiled")
	return paths, nil
}

// Tile is a convenience for New().Tile.
func Tile(sourcePath string, tileSize int, outputDir string) ([]string, error) {
	return New().Tile(sourcePath, tileSize, outputDir)
}

// WritePNG losslessly encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "tiler: create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "tiler: encode %s", path)
	}
	return errors.Wrapf(f.Close(), "tiler: close %s", path)
}

func (t *Tiler) logger() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}
