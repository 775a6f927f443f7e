package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// sampleExts are the file types indexed in image and mask directories.
var sampleExts = map[string]bool{".png": true, ".jpg": true, ".tif": true}

// ErrEmpty is returned when splitting an index without samples.
var ErrEmpty = errors.New("dataset: no images found to split")

// PairingError reports image and mask directories that do not pair up 1:1.
type PairingError struct {
	Images, Masks int
	// Image and Mask are the first mismatched names; empty on a count mismatch.
	Image, Mask string
}

func (e *PairingError) Error() string {
	if e.Image == "" && e.Mask == "" {
		return fmt.Sprintf("dataset: mismatched image/mask counts: %d images, %d masks", e.Images, e.Masks)
	}
	return fmt.Sprintf("dataset: mismatched pair: %s vs %s", e.Image, e.Mask)
}

// Sample is one image tile and its mask, sharing a base name.
type Sample struct {
	Image string
	Mask  string
}

// Options configures how an index decodes its samples.
type Options struct {
	// TileSize is the edge every decoded sample is resized to. Default 256.
	TileSize int
	// Shuffle enables reshuffling in OnEpochEnd.
	Shuffle bool
	// CacheSize is the number of decoded samples kept in memory; 0 disables caching.
	CacheSize int
}

// Index is an ordered set of paired samples over an image and a mask directory.
type Index struct {
	imageDir string
	maskDir  string
	samples  []Sample
	opts     Options
	cache    *sampleCache
}

// New lists both directories, sorted by name, and checks that they pair 1:1.
func New(imageDir, maskDir string, opts Options) (*Index, error) {
	if opts.TileSize <= 0 {
		opts.TileSize = 256
	}

	images, err := listSamples(imageDir, "image")
	if err != nil {
		return nil, err
	}
	masks, err := listSamples(maskDir, "mask")
	if err != nil {
		return nil, err
	}

	if len(images) != len(masks) {
		return nil, &PairingError{Images: len(images), Masks: len(masks)}
	}
	samples := make([]Sample, len(images))
	for i := range images {
		if filepath.Base(images[i]) != filepath.Base(masks[i]) {
			return nil, &PairingError{Images: len(images), Masks: len(masks), Image: images[i], Mask: masks[i]}
		}
		samples[i] = Sample{Image: images[i], Mask: masks[i]}
	}

	cache, err := newSampleCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Index{
		imageDir: imageDir,
		maskDir:  maskDir,
		samples:  samples,
		opts:     opts,
		cache:    cache,
	}, nil
}

func listSamples(dir, kind string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("dataset: %s directory not found: %s", kind, dir)
		}
		return nil, errors.Wrapf(err, "dataset: list %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !sampleExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of samples.
func (idx *Index) Len() int { return len(idx.samples) }

// ImageDir returns the directory the image tiles were listed from.
func (idx *Index) ImageDir() string { return idx.imageDir }

// MaskDir returns the directory the masks were listed from.
func (idx *Index) MaskDir() string { return idx.maskDir }

// Samples returns a copy of the samples in their current order.
func (idx *Index) Samples() []Sample {
	out := make([]Sample, len(idx.samples))
	copy(out, idx.samples)
	return out
}

// Shuffle permutes the samples with rng. Images and masks move together.
func (idx *Index) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(idx.samples), func(i, j int) {
		idx.samples[i], idx.samples[j] = idx.samples[j], idx.samples[i]
	})
}

// OnEpochEnd reshuffles when the index was built with Options.Shuffle.
func (idx *Index) OnEpochEnd(rng *rand.Rand) {
	if idx.opts.Shuffle && len(idx.samples) > 0 {
		idx.Shuffle(rng)
	}
}

// SplitPoint is the number of training samples for n samples and valRatio:
// floor(n × (1 − valRatio)).
func SplitPoint(n int, valRatio float64) int {
	return int(float64(n) * (1 - valRatio))
}

// Split returns a training index with the first SplitPoint samples in the
// current order and a validation index with the rest. Both cover the same
// directories; validation never reshuffles.
func (idx *Index) Split(valRatio float64) (train, val *Index, err error) {
	if len(idx.samples) == 0 {
		return nil, nil, ErrEmpty
	}
	if !(valRatio >= 0 && valRatio <= 1) {
		return nil, nil, errors.Errorf("dataset: validation ratio %v outside [0, 1]", valRatio)
	}

	at := SplitPoint(len(idx.samples), valRatio)

	train = idx.sub(idx.samples[:at], idx.opts.Shuffle)
	val = idx.sub(idx.samples[at:], false)
	return train, val, nil
}

func (idx *Index) sub(samples []Sample, shuffle bool) *Index {
	opts := idx.opts
	opts.Shuffle = shuffle
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return &Index{
		imageDir: idx.imageDir,
		maskDir:  idx.maskDir,
		samples:  cp,
		opts:     opts,
		cache:    idx.cache,
	}
}
