package mask

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"satwater/internal/postprocess"
	"satwater/internal/raster"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// Water and Land are the only values a mask holds.
	Water uint8 = 255
	Land  uint8 = 0

	// Epsilon keeps the spectral ratios finite.
	Epsilon = 1e-6
	// NDWIThreshold is the NDWI above which an RGBN pixel is water.
	NDWIThreshold = 0.2
	// RatioThreshold is the blue/green ratio above which an RGB pixel is water.
	RatioThreshold = 1.1
	// FallbackSize is the edge of the blank mask returned when derivation fails.
	FallbackSize = 256
)

// DerivationError reports a failure while computing a mask.
type DerivationError struct {
	Path string
	Err  error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("mask: derive %s: %v", e.Path, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// Deriver computes binary water masks from tiles.
type Deriver struct {
	Log logrus.FieldLogger
}

// New returns a Deriver logging to the standard logrus logger.
func New() *Deriver {
	return &Deriver{Log: logrus.StandardLogger()}
}

// Derive opens the tile at path and returns its cleaned water mask, the same
// size as the tile.
func (d *Deriver) Derive(path string) (*image.Gray, error) {
	src, err := raster.Open(path)
	if err != nil {
		return nil, &DerivationError{Path: path, Err: err}
	}
	defer src.Close()

	full := image.Rect(0, 0, src.Width(), src.Height())
	var m *image.Gray
	if br, ok := src.(raster.BandReader); ok {
		// spectral indexes use native sample values
		var planes *raster.Planes
		if planes, err = br.ReadBands(full); err == nil {
			m, err = FromBands(planes, src.Layout())
		}
	} else {
		var img image.Image
		if img, err = src.ReadWindow(full); err == nil {
			m, err = FromImage(img, src.Layout())
		}
	}
	if err != nil {
		return nil, &DerivationError{Path: path, Err: err}
	}
	return m, nil
}

// DeriveOrFallback is Derive that never fails: any error is logged and a blank
// FallbackSize×FallbackSize mask is returned, whatever the tile size.
func (d *Deriver) DeriveOrFallback(path string) *image.Gray {
	m, err := d.Derive(path)
	if err != nil {
		d.logger().WithField("tile", path).WithError(err).Warn("mask derivation failed, using blank mask")
		return Blank(FallbackSize, FallbackSize)
	}
	return m
}

// FromImage thresholds img according to layout and applies a 3×3 opening.
func FromImage(img image.Image, layout raster.Layout) (*image.Gray, error) {
	var m *image.Gray
	switch layout {
	case raster.RGBN:
		n, ok := img.(*image.NRGBA)
		if !ok {
			return nil, errors.Errorf("rgbn tile decoded as %T", img)
		}
		m = NDWI(n)
	case raster.RGB:
		n, ok := img.(*image.NRGBA)
		if !ok {
			return nil, errors.Errorf("rgb tile decoded as %T", img)
		}
		m = BlueGreenRatio(n)
	case raster.Grayscale:
		b := img.Bounds()
		m = Blank(b.Dx(), b.Dy())
	default:
		return nil, errors.Errorf("unknown layout %v", layout)
	}
	return postprocess.Open(m, 1), nil
}

// FromBands is FromImage over native-precision planes: green is band 2, blue
// band 3 and near-infrared band 4.
func FromBands(p *raster.Planes, layout raster.Layout) (*image.Gray, error) {
	var (
		t  float64
		at func(i int) float64
	)
	switch layout {
	case raster.RGBN:
		if len(p.Bands) < 4 {
			return nil, errors.Errorf("rgbn tile has %d bands", len(p.Bands))
		}
		g, n := p.Bands[1], p.Bands[3]
		t, at = NDWIThreshold, func(i int) float64 { return ndwi(g[i], n[i]) }
	case raster.RGB:
		if len(p.Bands) < 3 {
			return nil, errors.Errorf("rgb tile has %d bands", len(p.Bands))
		}
		g, b := p.Bands[1], p.Bands[2]
		t, at = RatioThreshold, func(i int) float64 { return blueGreen(b[i], g[i]) }
	case raster.Grayscale:
		return postprocess.Open(Blank(p.Width, p.Height), 1), nil
	default:
		return nil, errors.Errorf("unknown layout %v", layout)
	}

	m := Blank(p.Width, p.Height)
	for i := range m.Pix {
		if at(i) > t {
			m.Pix[i] = Water
		}
	}
	return postprocess.Open(m, 1), nil
}

// NDWI marks pixels whose normalized difference water index, taken from the
// green (second) and near-infrared (fourth) channels, exceeds NDWIThreshold.
func NDWI(img *image.NRGBA) *image.Gray {
	return threshold(img, NDWIThreshold, ndwiAt)
}

// BlueGreenRatio marks pixels whose blue/green ratio exceeds RatioThreshold.
func BlueGreenRatio(img *image.NRGBA) *image.Gray {
	return threshold(img, RatioThreshold, ratioAt)
}

// Blank returns an all-land mask.
func Blank(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// Index returns the per-pixel spectral value the layout thresholds on, row
// major. Grayscale tiles have no index and yield nil.
func Index(img image.Image, layout raster.Layout) []float64 {
	n, ok := img.(*image.NRGBA)
	if !ok {
		return nil
	}
	var at func(p []uint8) float64
	switch layout {
	case raster.RGBN:
		at = ndwiAt
	case raster.RGB:
		at = ratioAt
	default:
		return nil
	}
	b := n.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := n.PixOffset(b.Min.X+x, b.Min.Y+y)
			out = append(out, at(n.Pix[i:i+4]))
		}
	}
	return out
}

// Coverage is the percentage of water pixels in m.
func Coverage(m *image.Gray) float64 {
	b := m.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	return 100 * float64(postprocess.Count(m, Water)) / float64(total)
}

// Name returns the standalone mask file name for a tile, {tile_stem}_mask.png.
func Name(tilePath string) string {
	base := filepath.Base(tilePath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_mask.png"
}

func ndwi(g, n float64) float64 { return (g - n) / (g + n + Epsilon) }

func blueGreen(b, g float64) float64 { return b / (g + Epsilon) }

func ndwiAt(p []uint8) float64 { return ndwi(float64(p[1]), float64(p[3])) }

func ratioAt(p []uint8) float64 { return blueGreen(float64(p[2]), float64(p[1])) }

func threshold(img *image.NRGBA, t float64, at func(p []uint8) float64) *image.Gray {
	b := img.Bounds()
	m := Blank(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			if at(img.Pix[i:i+4]) > t {
				m.Pix[y*m.Stride+x] = Water
			}
		}
	}
	return m
}

func (d *Deriver) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}
