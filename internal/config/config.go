package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the on-disk configuration of the otp command.
type Config struct {
	Dir           string `yaml:"dir"`
	MinimumFreeGB uint   `yaml:"minimumFreeGB"`
	LogLevel      string `yaml:"logLevel"`
	Workers       int    `yaml:"workers"`
	PlainFile     string `yaml:"plainfile"`
	CipherFile    string `yaml:"cipherfile"`
}

func Default() Config {
	return Config{
		Dir:        ".",
		LogLevel:   "info",
		PlainFile:  "plainfile",
		CipherFile: "cipherfile",
	}
}

// Load reads the YAML file at path. A missing file yields the defaults;
// zero fields in a present file are filled from the defaults.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if file.Workers < 0 {
		return Config{}, fmt.Errorf("parse config %s: workers must not be negative", path)
	}

	if file.Dir != "" {
		config.Dir = file.Dir
	}
	if file.LogLevel != "" {
		config.LogLevel = file.LogLevel
	}
	if file.PlainFile != "" {
		config.PlainFile = file.PlainFile
	}
	if file.CipherFile != "" {
		config.CipherFile = file.CipherFile
	}
	config.MinimumFreeGB = file.MinimumFreeGB
	config.Workers = file.Workers

	return config, nil
}
