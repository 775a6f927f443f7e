package raster

import (
	"image"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/pkg/errors"
)

var registerDrivers sync.Once

// geoSource reads windows band by band through GDAL without loading the full raster.
type geoSource struct {
	path   string
	ds     *godal.Dataset
	bands  []godal.Band
	native int
	width  int
	height int
	layout Layout
	geo    *GeoInfo
}

func openGeo(path string) (*geoSource, error) {
	registerDrivers.Do(godal.RegisterAll)

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, readError(path, err)
	}

	st := ds.Structure()
	bands := ds.Bands()
	s := &geoSource{
		path:   path,
		ds:     ds,
		bands:  bands,
		native: len(bands),
		width:  st.SizeX,
		height: st.SizeY,
	}

	switch n := len(bands); {
	case n >= 4:
		s.layout = RGBN
		s.bands = bands[:4]
	case n == 3:
		s.layout = RGB
	case n == 1:
		s.layout = Grayscale
	default:
		ds.Close()
		return nil, readError(path, errors.Errorf("unsupported band count %d", n))
	}

	if gt, err := ds.GeoTransform(); err == nil {
		s.geo = &GeoInfo{Transform: gt, Projection: ds.Projection()}
	}

	return s, nil
}

func (s *geoSource) Path() string   { return s.path }
func (s *geoSource) Width() int     { return s.width }
func (s *geoSource) Height() int    { return s.height }
func (s *geoSource) Bands() int     { return s.native }
func (s *geoSource) Layout() Layout { return s.layout }
func (s *geoSource) Geo() *GeoInfo  { return s.geo }

func (s *geoSource) ReadWindow(r image.Rectangle) (image.Image, error) {
	r = clip(s, r)
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return nil, readError(s.path, errors.Errorf("window %v outside %dx%d raster", r, s.width, s.height))
	}

	// GDAL hands back one plane per band
	planes := make([][]uint8, len(s.bands))
	for i, band := range s.bands {
		planes[i] = make([]uint8, w*h)
		if err := band.Read(r.Min.X, r.Min.Y, planes[i], w, h); err != nil {
			return nil, readError(s.path, errors.Wrapf(err, "band %d window %v", i+1, r))
		}
	}

	if s.layout == Grayscale {
		return &image.Gray{Pix: planes[0], Stride: w, Rect: image.Rect(0, 0, w, h)}, nil
	}
	return interleave(planes, w, h), nil
}

// ReadBands reads the used bands of r at native precision, before any
// conversion to 8 bits.
func (s *geoSource) ReadBands(r image.Rectangle) (*Planes, error) {
	r = clip(s, r)
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return nil, readError(s.path, errors.Errorf("window %v outside %dx%d raster", r, s.width, s.height))
	}

	p := &Planes{Width: w, Height: h, Bands: make([][]float64, len(s.bands))}
	for i, band := range s.bands {
		p.Bands[i] = make([]float64, w*h)
		if err := band.Read(r.Min.X, r.Min.Y, p.Bands[i], w, h); err != nil {
			return nil, readError(s.path, errors.Wrapf(err, "band %d window %v", i+1, r))
		}
	}
	return p, nil
}

func (s *geoSource) Close() error {
	if err := s.ds.Close(); err != nil {
		return readError(s.path, err)
	}
	return nil
}

// interleave turns 3 or 4 band planes into a channel-last NRGBA image.
// A missing fourth plane is filled with 255.
func interleave(planes [][]uint8, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		o := i * 4
		dst.Pix[o] = planes[0][i]
		dst.Pix[o+1] = planes[1][i]
		dst.Pix[o+2] = planes[2][i]
		if len(planes) > 3 {
			dst.Pix[o+3] = planes[3][i]
		} else {
			dst.Pix[o+3] = 255
		}
	}
	return dst
}
