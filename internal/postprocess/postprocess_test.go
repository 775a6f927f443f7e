package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

var grayOn = color.Gray{Y: 255}

func mask(w, h int, on ...image.Point) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for _, p := range on {
		m.SetGray(p.X, p.Y, grayOn)
	}
	return m
}

func fill(m *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, grayOn)
		}
	}
}

func TestOpenRemovesStrayPixel(t *testing.T) {
	m := mask(256, 256, image.Pt(128, 40))
	require.Equal(t, 1, Count(m, 255))
	require.Zero(t, Count(Open(m, 1), 255))
}

func TestOpenRemovesThinLine(t *testing.T) {
	m := mask(20, 20)
	fill(m, image.Rect(2, 5, 18, 7)) // two pixels tall
	require.Zero(t, Count(Open(m, 1), 255))
}

func TestOpenKeepsBlock(t *testing.T) {
	m := mask(20, 20)
	fill(m, image.Rect(4, 4, 10, 9))
	out := Open(m, 1)
	require.Equal(t, m.Pix, out.Pix)
}

func TestBordersDoNotErode(t *testing.T) {
	m := mask(6, 6)
	fill(m, m.Bounds())
	require.Equal(t, 36, Count(Erode(m), 255))
	require.Equal(t, 36, Count(Open(m, 1), 255))

	// a corner block touching the edge survives opening
	c := mask(10, 10)
	fill(c, image.Rect(0, 0, 3, 3))
	require.Equal(t, 9, Count(Open(c, 1), 255))
}

func TestDilateGrows(t *testing.T) {
	m := mask(5, 5, image.Pt(2, 2))
	require.Equal(t, 9, Count(Dilate(m), 255))
	require.Equal(t, 4, Count(Dilate(mask(5, 5, image.Pt(0, 0))), 255))
}

func TestOpenDoesNotMutateInput(t *testing.T) {
	m := mask(8, 8, image.Pt(3, 3))
	Open(m, 1)
	require.Equal(t, 1, Count(m, 255))
}

func TestRegions(t *testing.T) {
	m := mask(10, 10, image.Pt(0, 0), image.Pt(1, 1), image.Pt(9, 9))
	fill(m, image.Rect(4, 4, 7, 6))
	require.Equal(t, []int{2, 6, 1}, Regions(m))
	require.Empty(t, Regions(mask(3, 3)))
}
