package postprocess

import "image"

// Erode replaces each pixel with the minimum of its 3×3 neighbourhood.
// Neighbours outside the image are ignored, so borders do not erode.
func Erode(m *image.Gray) *image.Gray {
	return filter3x3(m, func(acc, v uint8) uint8 {
		if v < acc {
			return v
		}
		return acc
	})
}

// Dilate replaces each pixel with the maximum of its 3×3 neighbourhood.
func Dilate(m *image.Gray) *image.Gray {
	return filter3x3(m, func(acc, v uint8) uint8 {
		if v > acc {
			return v
		}
		return acc
	})
}

// Open applies erosion followed by dilation with a 3×3 all-ones kernel,
// repeated iterations times per step.
func Open(m *image.Gray, iterations int) *image.Gray {
	out := m
	for i := 0; i < iterations; i++ {
		out = Erode(out)
	}
	for i := 0; i < iterations; i++ {
		out = Dilate(out)
	}
	return out
}

func filter3x3(m *image.Gray, pick func(acc, v uint8) uint8) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := m.Pix[y*m.Stride+x]
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				row := ny * m.Stride
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					acc = pick(acc, m.Pix[row+nx])
				}
			}
			dst.Pix[y*dst.Stride+x] = acc
		}
	}
	return dst
}
