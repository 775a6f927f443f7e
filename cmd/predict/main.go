package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"satwater/internal/predict"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
)

type args struct {
	Image   string `arg:"positional,required" help:"single tile to predict on"`
	Out     string `arg:"-o" help:"write the predicted mask here (.png or .webp)"`
	Verbose bool   `arg:"-v" help:"debug logging"`
}

func main() {
	var a args
	p := arg.MustParse(&a)

	if a.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	res, _ := predict.NewMaskModel().Predict(a.Image)
	fmt.Printf("Water Body Percentage: %v%%\n", res.WaterPercentage)

	if a.Out == "" {
		return
	}
	var err error
	switch strings.ToLower(filepath.Ext(a.Out)) {
	case ".webp":
		err = predict.WriteWebP(a.Out, res.Mask)
	case ".png":
		err = predict.WritePNG(a.Out, res.Mask)
	default:
		p.Fail("output must end in .png or .webp")
	}
	if err != nil {
		logrus.WithError(err).Fatal("write mask")
	}
}
