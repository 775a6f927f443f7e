package raster

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Layout is the spectral band arrangement of a source, decided once at open time.
type Layout int

const (
	// Grayscale sources carry no spectral signal.
	Grayscale Layout = iota
	// RGB sources have red, green and blue channels (any extra alpha is ignored).
	RGB
	// RGBN sources are geo-rasters with red, green, blue and near-infrared bands.
	RGBN
)

func (l Layout) String() string {
	switch l {
	case Grayscale:
		return "grayscale"
	case RGB:
		return "rgb"
	case RGBN:
		return "rgbn"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// GeoInfo is the geo-referencing read from a geo-raster. It is informational only.
type GeoInfo struct {
	Transform  [6]float64
	Projection string
}

// Source is an opened raster. Windows are clipped to the raster extent.
type Source interface {
	Path() string
	Width() int
	Height() int
	// Bands is the native band count, including bands the layout ignores.
	Bands() int
	Layout() Layout
	// Geo returns nil for sources without geo-referencing.
	Geo() *GeoInfo
	// ReadWindow returns the pixels of r clipped to the raster, channel-last.
	// Grayscale sources yield *image.Gray (*image.Paletted for palette images),
	// all others *image.NRGBA. For RGBN the fourth channel holds near-infrared.
	ReadWindow(r image.Rectangle) (image.Image, error)
	Close() error
}

// Planes are band-first samples of a window, each plane row major.
type Planes struct {
	Width, Height int
	Bands         [][]float64
}

// BandReader is implemented by sources whose samples can be wider than 8 bits.
// ReadWindow converts to 8 bits for encoding; ReadBands keeps the native values.
type BandReader interface {
	ReadBands(r image.Rectangle) (*Planes, error)
}

// geoExts are opened through GDAL with windowed band reads.
var geoExts = map[string]bool{".tif": true, ".tiff": true}

// imageExts are decoded whole with the image package.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".tga": true,
}

// IsGeo reports whether path is read through the geo-raster path.
func IsGeo(path string) bool {
	return geoExts[strings.ToLower(filepath.Ext(path))]
}

// Recognized reports whether Open can read path, judged by extension.
func Recognized(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return geoExts[ext] || imageExts[ext]
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open opens path as a geo-raster or a standard image depending on its extension.
func Open(path string) (Source, error) {
	if IsGeo(path) {
		return openGeo(path)
	}
	return openImage(path)
}

// clip intersects r with the source extent.
func clip(s Source, r image.Rectangle) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, s.Width(), s.Height()))
}
