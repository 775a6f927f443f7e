package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"satwater/internal/mask"
	"satwater/internal/tiler"

	"github.com/cheggaaa/pb/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// inputExts are the source formats picked up from the input directory.
var inputExts = map[string]bool{
	".tif": true, ".tiff": true, ".png": true, ".jpg": true,
	".jpeg": true, ".bmp": true, ".webp": true, ".tga": true,
}

// Config holds all shared resources for a preprocessing run.
type Config struct {
	ImageDir string
	MaskDir  string
	TileSize int

	// ScratchDir is the parent of the per-image scratch directories.
	// Empty means the system temp directory.
	ScratchDir string

	// Workers > 1 processes images concurrently, each in its own scratch directory.
	Workers int

	// Stats fills the per-tile statistics used by the manifest.
	Stats bool

	// Manifest, when set, is where Run writes manifest.json. Implies Stats.
	Manifest string

	// MaskName names a tile's mask file. Nil keeps the tile's base name.
	MaskName func(tilePath string) string

	// Progress receives a progress bar; nil disables it.
	Progress io.Writer

	Log     logrus.FieldLogger
	Tiler   *tiler.Tiler
	Deriver *mask.Deriver
}

// ItemError reports a source image that contributed no tiles.
type ItemError struct {
	Source string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("batch: process %s: %v", e.Source, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// TileRecord is one image/mask pair written by a run.
type TileRecord struct {
	Image     string
	Mask      string
	Coverage  float64
	Regions   int
	MeanIndex float64
}

// Result holds the outcome of processing one source image.
type Result struct {
	Source string
	Tiles  []TileRecord
	Err    error
}

// Success reports whether the source produced its tiles.
func (r Result) Success() bool { return r.Err == nil }

// Summary is the outcome of a whole run.
type Summary struct {
	Results []Result
	Total   int
	Failed  int
}

// Preprocessor tiles source images and pairs every tile with its water mask.
type Preprocessor struct {
	cfg Config
}

// New fills in defaults and returns a Preprocessor.
func New(cfg Config) *Preprocessor {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Tiler == nil {
		cfg.Tiler = &tiler.Tiler{Log: cfg.Log}
	}
	if cfg.Deriver == nil {
		cfg.Deriver = &mask.Deriver{Log: cfg.Log}
	}
	if cfg.MaskName == nil {
		cfg.MaskName = filepath.Base
	}
	if cfg.Manifest != "" {
		cfg.Stats = true
	}
	return &Preprocessor{cfg: cfg}
}

// Inputs lists the recognized source images directly inside dir, sorted by name.
func Inputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "batch: list %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !inputExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// Run processes every recognized image in inputDir. Per-image failures are
// recorded in the summary and never stop the run.
func (p *Preprocessor) Run(inputDir string) (Summary, error) {
	for _, dir := range []string{p.cfg.ImageDir, p.cfg.MaskDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Summary{}, errors.Wrapf(err, "batch: create %s", dir)
		}
	}
	sources, err := Inputs(inputDir)
	if err != nil {
		return Summary{}, err
	}

	sum := summarize(p.runAll(sources))
	if p.cfg.Manifest != "" {
		if err := WriteManifest(p.cfg.Manifest, sum.Results); err != nil {
			return sum, err
		}
	}

	p.cfg.Log.WithFields(logrus.Fields{
		"images": len(sources),
		"failed": sum.Failed,
		"tiles":  sum.Total,
	}).Infof("preprocessing complete, created %d tiles and masks", sum.Total)
	return sum, nil
}

func summarize(results []Result) Summary {
	sum := Summary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			sum.Failed++
			continue
		}
		sum.Total += len(r.Tiles)
	}
	return sum
}

func (p *Preprocessor) runAll(sources []string) []Result {
	results := make([]Result, len(sources))

	var bar *pb.ProgressBar
	if p.cfg.Progress != nil {
		bar = pb.New(len(sources)).SetWriter(p.cfg.Progress).Start()
		defer bar.Finish()
	}

	// Worker pool
	work := make(chan int, p.cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = p.process(sources[idx])
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}

	for i := range sources {
		work <- i
	}
	close(work)
	wg.Wait()

	return results
}

// ProcessOne tiles and masks a single source and returns its tile count,
// 0 when it failed.
func (p *Preprocessor) ProcessOne(path string) (int, error) {
	r := p.process(path)
	return len(r.Tiles), r.Err
}

func (p *Preprocessor) process(path string) Result {
	tiles, err := p.processTiles(path)
	if err != nil {
		err = &ItemError{Source: path, Err: err}
		p.cfg.Log.WithField("source", path).WithError(err).Error("skipping image")
		return Result{Source: path, Err: err}
	}
	return Result{Source: path, Tiles: tiles}
}

func (p *Preprocessor) processTiles(path string) (records []TileRecord, err error) {
	scratch, err := os.MkdirTemp(p.cfg.ScratchDir, "tiles-*")
	if err != nil {
		return nil, errors.Wrap(err, "create scratch dir")
	}
	defer os.RemoveAll(scratch)

	// A failed image leaves no half-written pairs behind
	var written []string
	defer func() {
		if err != nil {
			for _, f := range written {
				os.Remove(f)
			}
			records = nil
		}
	}()

	tilePaths, err := p.cfg.Tiler.Tile(path, p.cfg.TileSize, scratch)
	if err != nil {
		return nil, err
	}

	for _, tilePath := range tilePaths {
		m := p.cfg.Deriver.DeriveOrFallback(tilePath)

		rec := TileRecord{}
		if p.cfg.Stats {
			rec = tileStats(tilePath, m)
		}

		rec.Image = filepath.Join(p.cfg.ImageDir, filepath.Base(tilePath))
		rec.Mask = filepath.Join(p.cfg.MaskDir, p.cfg.MaskName(tilePath))

		if err := tiler.WritePNG(rec.Mask, m); err != nil {
			return nil, err
		}
		written = append(written, rec.Mask)
		if err := moveFile(tilePath, rec.Image); err != nil {
			return nil, err
		}
		written = append(written, rec.Image)

		records = append(records, rec)
	}
	return records, nil
}

// rename is os.Rename, replaced in tests to force the copy path.
var rename = os.Rename

// moveFile renames src to dst, copying when they sit on different devices.
// A failed copy leaves no dst behind.
func moveFile(src, dst string) (err error) {
	if err := rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create %s", dst)
	}
	defer func() {
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy %s", dst)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "close %s", dst)
	}
	return os.Remove(src)
}
