package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// MaskThreshold is the luminance above which a mask pixel counts as water.
const MaskThreshold = 128

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Batch holds images shaped (N, S, S, 3) in [0, 1] and masks shaped
// (N, S, S, 1) in {0, 1}.
type Batch struct {
	Images Tensor
	Masks  Tensor
}

// NumBatches is the number of batches of size batchSize, the last one possibly short.
func (idx *Index) NumBatches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return (len(idx.samples) + batchSize - 1) / batchSize
}

// Batch decodes the samples of batch i.
func (idx *Index) Batch(i, batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, errors.Errorf("dataset: batch size must be positive, got %d", batchSize)
	}
	start := i * batchSize
	if i < 0 || start >= len(idx.samples) {
		return Batch{}, errors.Errorf("dataset: batch %d out of range (%d batches)", i, idx.NumBatches(batchSize))
	}
	end := start + batchSize
	if end > len(idx.samples) {
		end = len(idx.samples)
	}

	s := idx.opts.TileSize
	n := end - start
	b := Batch{
		Images: Tensor{Shape: []int{n, s, s, 3}, Data: make([]float32, 0, n*s*s*3)},
		Masks:  Tensor{Shape: []int{n, s, s, 1}, Data: make([]float32, 0, n*s*s)},
	}

	for _, sample := range idx.samples[start:end] {
		img, err := idx.loadImage(sample.Image)
		if err != nil {
			return Batch{}, err
		}
		m, err := idx.loadMask(sample.Mask)
		if err != nil {
			return Batch{}, err
		}

		for p := 0; p < len(img.Pix); p += 4 {
			b.Images.Data = append(b.Images.Data,
				float32(img.Pix[p])/255, float32(img.Pix[p+1])/255, float32(img.Pix[p+2])/255)
		}
		for _, v := range m.Pix {
			if v > MaskThreshold {
				b.Masks.Data = append(b.Masks.Data, 1)
			} else {
				b.Masks.Data = append(b.Masks.Data, 0)
			}
		}
	}
	return b, nil
}

func (idx *Index) loadImage(path string) (*image.NRGBA, error) {
	if v, ok := idx.cache.get("image:" + path); ok {
		return v.(*image.NRGBA), nil
	}
	src, err := decode(path)
	if err != nil {
		return nil, err
	}
	s := idx.opts.TileSize
	dst := image.NewNRGBA(image.Rect(0, 0, s, s))
	resize(dst, src)
	idx.cache.add("image:"+path, dst)
	return dst, nil
}

func (idx *Index) loadMask(path string) (*image.Gray, error) {
	if v, ok := idx.cache.get("mask:" + path); ok {
		return v.(*image.Gray), nil
	}
	src, err := decode(path)
	if err != nil {
		return nil, err
	}

	// luminance, then resize
	lum := image.NewGray(src.Bounds())
	draw.Draw(lum, lum.Bounds(), src, src.Bounds().Min, draw.Src)

	s := idx.opts.TileSize
	dst := image.NewGray(image.Rect(0, 0, s, s))
	resize(dst, lum)
	idx.cache.add("mask:"+path, dst)
	return dst, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: decode %s", path)
	}
	return img, nil
}

// resize scales src onto dst with CatmullRom, copying when sizes already match.
func resize(dst draw.Image, src image.Image) {
	src = opaque(src)
	sb := src.Bounds()
	if sb.Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
}

// opaque drops alpha from NRGBA sources so colour channels survive the
// premultiplication done by draw. Four-band tiles keep near-infrared in alpha.
func opaque(src image.Image) image.Image {
	n, ok := src.(*image.NRGBA)
	if !ok {
		return src
	}
	b := n.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := n.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * out.Stride
		copy(out.Pix[di:di+b.Dx()*4], n.Pix[si:si+b.Dx()*4])
	}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}
