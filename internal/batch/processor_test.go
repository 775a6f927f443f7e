package batch

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"satwater/internal/raster"
	"satwater/internal/tiler"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func scene(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 20, G: 80, B: 60, A: 255}
			if x < w/2 {
				c.B = 200 // left half is water
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

type fixture struct {
	input, images, masks, scratch string
}

func newFixture(t *testing.T) fixture {
	root := t.TempDir()
	f := fixture{
		input:   filepath.Join(root, "raw"),
		images:  filepath.Join(root, "dataset", "images_tiled"),
		masks:   filepath.Join(root, "dataset", "masks_tiled"),
		scratch: filepath.Join(root, "scratch"),
	}
	require.NoError(t, os.MkdirAll(f.input, 0755))
	require.NoError(t, os.MkdirAll(f.scratch, 0755))
	return f
}

func (f fixture) config(workers int) Config {
	log, _ := test.NewNullLogger()
	return Config{
		ImageDir:   f.images,
		MaskDir:    f.masks,
		TileSize:   256,
		ScratchDir: f.scratch,
		Workers:    workers,
		Log:        log,
	}
}

func TestRunPairsEveryTile(t *testing.T) {
	for _, workers := range []int{1, 3} {
		f := newFixture(t)
		require.NoError(t, tiler.WritePNG(filepath.Join(f.input, "alpha.png"), scene(300, 300)))
		require.NoError(t, tiler.WritePNG(filepath.Join(f.input, "beta.PNG"), scene(256, 100)))
		require.NoError(t, os.WriteFile(filepath.Join(f.input, "corrupt.jpg"), []byte("nope"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(f.input, "notes.txt"), []byte("skip"), 0644))

		sum, err := New(f.config(workers)).Run(f.input)
		require.NoError(t, err)
		require.Equal(t, 5, sum.Total)
		require.Equal(t, 1, sum.Failed)
		require.Len(t, sum.Results, 3)

		// results follow the sorted input order
		require.Equal(t, "alpha.png", filepath.Base(sum.Results[0].Source))
		require.Equal(t, "beta.PNG", filepath.Base(sum.Results[1].Source))
		require.False(t, sum.Results[2].Success())

		var ierr *ItemError
		require.True(t, errors.As(sum.Results[2].Err, &ierr))
		var rerr *raster.SourceReadError
		require.True(t, errors.As(sum.Results[2].Err, &rerr))

		images := names(t, f.images)
		require.Equal(t, images, names(t, f.masks))
		require.Equal(t, []string{
			"alpha_0_0.png", "alpha_0_256.png", "alpha_256_0.png", "alpha_256_256.png", "beta_0_0.png",
		}, images)

		require.Empty(t, names(t, f.scratch))
	}
}

func TestProcessOne(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.input, "scene.png")
	require.NoError(t, tiler.WritePNG(src, scene(100, 60)))

	p := New(f.config(1))
	require.NoError(t, os.MkdirAll(f.images, 0755))
	require.NoError(t, os.MkdirAll(f.masks, 0755))

	n, err := p.ProcessOne(src)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m, err := raster.Open(filepath.Join(f.masks, "scene_0_0.png"))
	require.NoError(t, err)
	defer m.Close()
	require.Equal(t, raster.Grayscale, m.Layout())
	require.Equal(t, 100, m.Width())
	require.Equal(t, 60, m.Height())

	_, err = os.Stat(filepath.Join(f.images, "scene_0_0.png"))
	require.NoError(t, err)

	n, err = p.ProcessOne(filepath.Join(f.input, "missing.tif"))
	require.Error(t, err)
	require.Zero(t, n)
	require.Empty(t, names(t, f.scratch))
}

func TestFailedImageLeavesNoPairs(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.input, "scene.png")
	require.NoError(t, tiler.WritePNG(src, scene(300, 100)))

	// the mask dir is a file, so writing the first mask fails
	require.NoError(t, os.MkdirAll(f.images, 0755))
	require.NoError(t, os.MkdirAll(filepath.Dir(f.masks), 0755))
	require.NoError(t, os.WriteFile(f.masks, nil, 0644))

	n, err := New(f.config(1)).ProcessOne(src)
	require.Error(t, err)
	require.Zero(t, n)
	require.Empty(t, names(t, f.images))
	require.Empty(t, names(t, f.scratch))
}

func TestManifest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, tiler.WritePNG(filepath.Join(f.input, "scene.png"), scene(64, 64)))

	cfg := f.config(1)
	cfg.Stats = true
	sum, err := New(cfg).Run(f.input)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Total)

	rec := sum.Results[0].Tiles[0]
	require.InDelta(t, 50.0, rec.Coverage, 1e-9)
	require.Equal(t, 1, rec.Regions)
	require.Greater(t, rec.MeanIndex, 1.1)

	path := filepath.Join(filepath.Dir(f.images), ManifestName)
	require.NoError(t, WriteManifest(path, sum.Results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "scene.png", entries[0].Source)
	require.Equal(t, "images_tiled/scene_0_0.png", entries[0].Image)
	require.Equal(t, "masks_tiled/scene_0_0.png", entries[0].Mask)
}

func TestRunMissingInput(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.config(1)).Run(filepath.Join(f.input, "nope"))
	require.Error(t, err)
}

func TestRunWritesManifest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, tiler.WritePNG(filepath.Join(f.input, "scene.png"), scene(300, 64)))

	cfg := f.config(1)
	cfg.Manifest = filepath.Join(filepath.Dir(f.images), ManifestName)
	sum, err := New(cfg).Run(f.input)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Total)

	data, err := os.ReadFile(cfg.Manifest)
	require.NoError(t, err)
	var entries []ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "images_tiled/scene_0_0.png", entries[0].Image)
	require.Equal(t, "masks_tiled/scene_0_256.png", entries[1].Mask)
	require.InDelta(t, 100*150.0/256, entries[0].Coverage, 1e-9)
	require.Zero(t, entries[1].Coverage)
	require.Equal(t, 1, entries[0].Regions)

	// the manifest sits beside the tile directories, never inside them
	require.Equal(t, names(t, f.images), names(t, f.masks))
}

func TestMoveFileCopyFallback(t *testing.T) {
	rename = func(string, string) error { return &os.LinkError{Op: "rename", Err: os.ErrInvalid} }
	defer func() { rename = os.Rename }()

	dir := t.TempDir()
	src := filepath.Join(dir, "tile.png")
	require.NoError(t, os.WriteFile(src, []byte("tile"), 0644))
	dst := filepath.Join(dir, "out.png")
	require.NoError(t, moveFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "tile", string(data))
	_, err = os.Stat(src)
	require.True(t, os.IsNotExist(err))

	// reading a directory fails after dst was created
	unreadable := filepath.Join(dir, "dir")
	require.NoError(t, os.Mkdir(unreadable, 0755))
	partial := filepath.Join(dir, "partial.png")
	require.Error(t, moveFile(unreadable, partial))
	_, err = os.Stat(partial)
	require.True(t, os.IsNotExist(err))
}
