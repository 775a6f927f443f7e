package predict

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"satwater/internal/mask"
	"satwater/internal/tiler"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"
)

func quiet() *MaskModel {
	log, _ := test.NewNullLogger()
	return &MaskModel{Deriver: &mask.Deriver{Log: log}, Log: log}
}

func TestPredictCoverage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 30, G: 90, B: 70, A: 255}
			if y < 10 {
				c.B = 220
			}
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "tile.png")
	require.NoError(t, tiler.WritePNG(path, img))

	res, err := quiet().Predict(path)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 40, 40), res.Mask.Bounds())
	require.InDelta(t, 25.0, res.WaterPercentage, 1e-9)
}

func TestPredictFallsBack(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	m := &MaskModel{Deriver: &mask.Deriver{Log: log}, Log: log}

	res, err := m.Predict(filepath.Join(t.TempDir(), "missing.tif"))
	require.NoError(t, err)
	require.Zero(t, res.WaterPercentage)
	require.Equal(t, image.Rect(0, 0, mask.FallbackSize, mask.FallbackSize), res.Mask.Bounds())
	require.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
	require.Equal(t, "predicted", hook.LastEntry().Message)
}

func TestWriteMasks(t *testing.T) {
	m := mask.Blank(6, 4)
	m.SetGray(1, 2, color.Gray{Y: mask.Water})
	dir := t.TempDir()

	webpPath := filepath.Join(dir, "mask.webp")
	require.NoError(t, WriteWebP(webpPath, m))
	f, err := os.Open(webpPath)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := webp.Decode(f)
	require.NoError(t, err)
	require.Equal(t, m.Bounds(), decoded.Bounds())
	require.Equal(t, color.Gray{Y: 255}, color.GrayModel.Convert(decoded.At(1, 2)))
	require.Equal(t, color.Gray{Y: 0}, color.GrayModel.Convert(decoded.At(0, 0)))

	pngPath := filepath.Join(dir, "mask.png")
	require.NoError(t, WritePNG(pngPath, m))
	_, err = os.Stat(pngPath)
	require.NoError(t, err)

	require.Error(t, WriteWebP(filepath.Join(dir, "no", "mask.webp"), m))
}
