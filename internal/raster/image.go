package raster

import (
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageSource is a decoded standard image. Windows are plain crops.
type imageSource struct {
	path   string
	img    image.Image
	layout Layout
}

func openImage(path string) (*imageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, readError(path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, readError(path, errors.Wrap(err, "decode"))
	}

	return &imageSource{path: path, img: img, layout: layoutOf(img)}, nil
}

// layoutOf classifies a decoded image. Paletted images count as single
// channel since their pixels are palette indices.
func layoutOf(img image.Image) Layout {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Paletted:
		return Grayscale
	}
	return RGB
}

func (s *imageSource) Path() string   { return s.path }
func (s *imageSource) Width() int     { return s.img.Bounds().Dx() }
func (s *imageSource) Height() int    { return s.img.Bounds().Dy() }
func (s *imageSource) Layout() Layout { return s.layout }
func (s *imageSource) Geo() *GeoInfo  { return nil }
func (s *imageSource) Close() error   { return nil }

func (s *imageSource) Bands() int {
	if s.layout == Grayscale {
		return 1
	}
	return 3
}

func (s *imageSource) ReadWindow(r image.Rectangle) (image.Image, error) {
	r = clip(s, r)
	if r.Empty() {
		return nil, readError(s.path, errors.Errorf("window %v outside %dx%d image", r, s.Width(), s.Height()))
	}
	// image bounds need not start at the origin
	r = r.Add(s.img.Bounds().Min)

	switch src := s.img.(type) {
	case *image.Paletted:
		dst := image.NewPaletted(image.Rect(0, 0, r.Dx(), r.Dy()), src.Palette)
		draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
		return dst, nil
	case *image.Gray, *image.Gray16:
		dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
		return dst, nil
	}
	return ToNRGBA(s.img, r), nil
}

// ToNRGBA copies rect r of src into a new non-premultiplied image anchored at the origin.
func ToNRGBA(src image.Image, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < r.Dy(); y++ {
			so := n.PixOffset(r.Min.X, r.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+r.Dx()*4], n.Pix[so:so+r.Dx()*4])
		}
		return dst
	}
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			i := dst.PixOffset(x, y)
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = c.A
		}
	}
	return dst
}
