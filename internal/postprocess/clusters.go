package postprocess

import "image"

// Regions returns the sizes of the 8-connected groups of non-zero pixels in m,
// in scan order of their first pixel.
func Regions(m *image.Gray) []int {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()

	seen := make([]bool, w*h)
	var sizes []int

	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}

	queue := make([]int, 0, 1024)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if seen[idx] || m.Pix[y*m.Stride+x] == 0 {
				continue
			}

			// BFS from this pixel
			queue = queue[:0]
			queue = append(queue, idx)
			seen[idx] = true
			size := 0

			for len(queue) > 0 {
				curr := queue[0]
				queue = queue[1:]
				size++

				cy := curr / w
				cx := curr % w
				for d := 0; d < 8; d++ {
					nx := cx + dx[d]
					ny := cy + dy[d]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if !seen[ni] && m.Pix[ny*m.Stride+nx] != 0 {
						seen[ni] = true
						queue = append(queue, ni)
					}
				}
			}

			sizes = append(sizes, size)
		}
	}

	return sizes
}

// Count returns the number of pixels in m equal to v.
func Count(m *image.Gray, v uint8) int {
	b := m.Bounds()
	n := 0
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()]
		for _, p := range row {
			if p == v {
				n++
			}
		}
	}
	return n
}
