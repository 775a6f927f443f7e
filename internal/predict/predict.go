package predict

import (
	"image"
	"os"

	"satwater/internal/mask"
	"satwater/internal/tiler"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Result is a predicted water mask and the share of water pixels in it.
type Result struct {
	Mask            *image.Gray
	WaterPercentage float64
}

// Model predicts water on a single tile.
type Model interface {
	Predict(path string) (Result, error)
}

// MaskModel predicts with the spectral water mask. The input is taken to be a
// single tile. It never fails: an unreadable tile yields the blank fallback
// mask and a zero percentage.
type MaskModel struct {
	Deriver *mask.Deriver
	Log     logrus.FieldLogger
}

// NewMaskModel returns a MaskModel logging to the standard logrus logger.
func NewMaskModel() *MaskModel {
	log := logrus.StandardLogger()
	return &MaskModel{Deriver: &mask.Deriver{Log: log}, Log: log}
}

func (m *MaskModel) Predict(path string) (Result, error) {
	d := m.Deriver
	if d == nil {
		d = mask.New()
	}
	water := d.DeriveOrFallback(path)
	res := Result{Mask: water, WaterPercentage: mask.Coverage(water)}

	log := m.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := water.Bounds()
	log.WithFields(logrus.Fields{
		"tile":   path,
		"pixels": b.Dx() * b.Dy(),
		"water":  res.WaterPercentage,
	}).Debug("predicted")
	return res, nil
}

// WritePNG saves a mask as PNG.
func WritePNG(path string, m *image.Gray) error {
	return tiler.WritePNG(path, m)
}

// WriteWebP saves a mask as lossless WebP.
func WriteWebP(path string, m *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "predict: create %s", path)
	}
	if err := nativewebp.Encode(f, m, nil); err != nil {
		f.Close()
		return errors.Wrapf(err, "predict: webp encode %s", path)
	}
	return errors.Wrapf(f.Close(), "predict: close %s", path)
}
