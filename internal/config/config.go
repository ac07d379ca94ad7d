// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	BackendDense = "dense"
	BackendONNX  = "onnx"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxUploadMB  int64         `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Model struct {
		Backend     string `yaml:"backend"`
		Weights     string `yaml:"weights"`
		ONNXPath    string `yaml:"onnx_path"`
		ONNXLibrary string `yaml:"onnx_library"`
		InputSize   int    `yaml:"input_size"`
	} `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	Log Log `yaml:"log"`
}

// Log configures the zap logger and its optional rotating file.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.MaxUploadMB = 10
	c.Model.Backend = BackendDense
	c.Model.Weights = "models/weights.json"
	c.Model.InputSize = 28
	c.Cache.Size = 256
	c.Log = Log{Level: "info", Format: "console", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28}
	return &c
}

// Load reads path over the defaults. A missing file yields the defaults.
// PORT in the environment overrides server.port.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks option combinations.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendDense:
		if c.Model.Weights == "" {
			return errors.New("config: model.weights is required for the dense backend")
		}
	case BackendONNX:
		if c.Model.ONNXPath == "" {
			return errors.New("config: model.onnx_path is required for the onnx backend")
		}
	default:
		return fmt.Errorf("config: unknown model.backend %q", c.Model.Backend)
	}
	if c.Model.InputSize <= 0 {
		return fmt.Errorf("config: model.input_size must be positive, got %d", c.Model.InputSize)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("config: cache.size must not be negative")
	}
	return nil
}
