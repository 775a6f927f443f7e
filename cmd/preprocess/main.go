package main

import (
	"os"
	"path/filepath"
	"time"

	"satwater/internal/batch"
	"satwater/internal/config"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
)

type args struct {
	InputDir       string `arg:"--input-dir" help:"directory of source rasters (default: raw_satellite_images)"`
	OutputImageDir string `arg:"--output-image-dir" help:"directory for image tiles (default: dataset/images_tiled)"`
	OutputMaskDir  string `arg:"--output-mask-dir" help:"directory for mask tiles (default: dataset/masks_tiled)"`
	TileSize       int    `arg:"--tile-size" help:"tile edge in pixels (default: 256)"`
}

func (args) Description() string {
	return "Tile satellite rasters and derive a water mask for every tile."
}

func main() {
	var a args
	arg.MustParse(&a)

	var cfg config.Config
	cfg.Resolve(config.Flags{
		InputDir:       a.InputDir,
		OutputImageDir: a.OutputImageDir,
		OutputMaskDir:  a.OutputMaskDir,
		TileSize:       a.TileSize,
	})

	log := logrus.StandardLogger()
	log.WithFields(logrus.Fields{
		"input":  cfg.InputDir,
		"images": cfg.OutputImageDir,
		"masks":  cfg.OutputMaskDir,
		"tile":   cfg.TileSize,
	}).Info("preprocessing dataset")

	start := time.Now()
	p := batch.New(batch.Config{
		ImageDir: cfg.OutputImageDir,
		MaskDir:  cfg.OutputMaskDir,
		TileSize: cfg.TileSize,
		Manifest: filepath.Join(filepath.Dir(cfg.OutputImageDir), batch.ManifestName),
		Progress: os.Stderr,
		Log:      log,
	})
	sum, err := p.Run(cfg.InputDir)
	if err != nil {
		log.WithError(err).Fatal("preprocessing failed")
	}

	log.Infof("done in %.1fs", time.Since(start).Seconds())
	for _, r := range sum.Results {
		if r.Err != nil {
			log.Warnf("  %s: %v", r.Source, r.Err)
		}
	}
}
