package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Config holds the preprocessing paths and the training-data settings.
type Config struct {
	// Paths
	BaseDir        string `json:"base_dir"`
	InputDir       string `json:"input_dir"`
	OutputImageDir string `json:"output_image_dir"`
	OutputMaskDir  string `json:"output_mask_dir"`
	TrainImageDir  string `json:"train_image_dir"`
	TrainMaskDir   string `json:"train_mask_dir"`
	ModelSavePath  string `json:"model_save_path"`

	// Tiling
	TileSize int `json:"tile_size"`

	// Training data
	BatchSize int     `json:"batch_size"`
	ValSplit  float64 `json:"val_split"`
	Seed      int64   `json:"seed"`
	CacheSize int     `json:"cache_size"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	InputDir       string
	OutputImageDir string
	OutputMaskDir  string
	TileSize       int
}

// Resolve applies flags and fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.InputDir != "" {
		c.InputDir = flags.InputDir
	}
	if flags.OutputImageDir != "" {
		c.OutputImageDir = flags.OutputImageDir
	}
	if flags.OutputMaskDir != "" {
		c.OutputMaskDir = flags.OutputMaskDir
	}
	if flags.TileSize > 0 {
		c.TileSize = flags.TileSize
	}

	c.InputDir = c.path(c.InputDir, "raw_satellite_images")
	c.OutputImageDir = c.path(c.OutputImageDir, filepath.Join("dataset", "images_tiled"))
	c.OutputMaskDir = c.path(c.OutputMaskDir, filepath.Join("dataset", "masks_tiled"))

	// Training reads what preprocessing wrote unless told otherwise
	if c.TrainImageDir == "" {
		c.TrainImageDir = c.OutputImageDir
	} else {
		c.TrainImageDir = c.path(c.TrainImageDir, "")
	}
	if c.TrainMaskDir == "" {
		c.TrainMaskDir = c.OutputMaskDir
	} else {
		c.TrainMaskDir = c.path(c.TrainMaskDir, "")
	}
	c.ModelSavePath = c.path(c.ModelSavePath, filepath.Join("model", "unet_model.h5"))

	if c.TileSize <= 0 {
		c.TileSize = 256
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.ValSplit <= 0 || c.ValSplit >= 1 {
		c.ValSplit = 0.2
	}
}

// path returns p, or def when p is empty, joined to BaseDir when relative.
func (c *Config) path(p, def string) string {
	if p == "" {
		p = def
	}
	if c.BaseDir != "" && !filepath.IsAbs(p) {
		return filepath.Join(c.BaseDir, p)
	}
	return p
}

// VerifyPaths checks that the training inputs and the model directory exist.
func (c *Config) VerifyPaths() error {
	for _, p := range []string{c.TrainImageDir, c.TrainMaskDir, filepath.Dir(c.ModelSavePath)} {
		if _, err := os.Stat(p); err != nil {
			return errors.Errorf("config: path does not exist: %s", p)
		}
	}
	return nil
}
