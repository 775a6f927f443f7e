package main

import (
	"os"
	"path/filepath"

	"satwater/internal/archive"
	"satwater/internal/batch"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
)

type args struct {
	Upload   string `arg:"positional,required" help:"zipped folder of GeoTIFFs"`
	WorkDir  string `arg:"--work-dir" default:"preprocessed_dataset" help:"directory the upload is expanded and processed in"`
	Output   string `arg:"-o" default:"preprocessed_dataset.zip" help:"archive of the processed dataset"`
	TileSize int    `arg:"--tile-size" default:"256" help:"tile edge in pixels"`
}

func (args) Description() string {
	return "Expand an uploaded archive, tile and mask its rasters, and zip the result."
}

func main() {
	var a args
	p := arg.MustParse(&a)

	out, err := filepath.Abs(a.Output)
	if err != nil {
		p.Fail(err.Error())
	}
	work, err := filepath.Abs(a.WorkDir)
	if err != nil {
		p.Fail(err.Error())
	}
	if rel, err := filepath.Rel(work, out); err == nil && filepath.IsLocal(rel) {
		p.Fail("output archive must not be inside the work directory")
	}

	log := logrus.StandardLogger()
	if err := os.MkdirAll(work, 0755); err != nil {
		log.WithError(err).Fatal("create work directory")
	}

	sum, err := batch.Upload{OutputDir: work, TileSize: a.TileSize, Log: log}.Process(a.Upload)
	if err != nil {
		log.WithError(err).Fatal("process upload")
	}

	if err := archive.ZipFile(work, out); err != nil {
		log.WithError(err).Fatal("zip dataset")
	}
	log.WithFields(logrus.Fields{
		"tiles":   sum.Total,
		"failed":  sum.Failed,
		"archive": out,
	}).Info("folder processed, ready to download")
}
