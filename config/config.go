// Package config is the project file the command line tools read.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTargetSize     = 60.0
	DefaultMaxDistance    = 1000.0
	DefaultImageListLimit = 5
)

// Config points at one reconstruction and its surface.
type Config struct {
	ColmapDir string `yaml:"colmap_dir"` // holds cameras.txt and images.txt
	ImagesDir string `yaml:"images_dir"` // optional, the source photos
	ModelPath string `yaml:"model_path"` // STL surface

	TargetSize     float64 `yaml:"target_size"`
	MaxDistance    float64 `yaml:"max_distance"`
	ImageListLimit int     `yaml:"image_list_limit"`

	// Picker is the service name remote commands talk to.
	Picker string `yaml:"picker"`
}

// Load reads a YAML file, fills in defaults and validates it. Relative paths
// are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.ColmapDir, &cfg.ImagesDir, &cfg.ModelPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and applies defaults for the rest.
func (c *Config) Validate() error {
	if c.ColmapDir == "" {
		return fmt.Errorf("colmap_dir is required")
	}
	if c.TargetSize < 0 {
		return fmt.Errorf("target_size must be > 0, got %.2f", c.TargetSize)
	}
	if c.TargetSize == 0 {
		c.TargetSize = DefaultTargetSize
	}
	if c.MaxDistance < 0 {
		return fmt.Errorf("max_distance must be > 0, got %.2f", c.MaxDistance)
	}
	if c.MaxDistance == 0 {
		c.MaxDistance = DefaultMaxDistance
	}
	if c.ImageListLimit <= 0 {
		c.ImageListLimit = DefaultImageListLimit
	}
	return nil
}
