package main

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

const configFileName = ".flatmapper.yaml"

var errConfigNotFound = errors.New("no " + configFileName + " found")

// config is the optional YAML config file - flags and environment variables take precedence
type config struct {
	Schema   string `yaml:"schema"`
	Root     string `yaml:"root"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Format   string `yaml:"format"`
	Validate *bool  `yaml:"validate"`
	// dir is the directory the config was loaded from - relative schema paths are resolved against it
	dir string
}

// findConfig searches for the config file starting from dir and walking up
func findConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for dir := absDir; ; {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errConfigNotFound
		}
		dir = parent
	}
}

func loadConfigFile(path string) (*config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var cfg config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(cfg.dir, cfg.Schema)
	}
	return &cfg, nil
}

// loadConfig loads the explicitly named config file or, if none is named, discovers one from the working directory
//
// a missing discovered config is not an error
func loadConfig(explicit string) (*config, error) {
	if explicit != "" {
		return loadConfigFile(explicit)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := findConfig(wd)
	if errors.Is(err, errConfigNotFound) {
		return &config{}, nil
	} else if err != nil {
		return nil, err
	}
	return loadConfigFile(path)
}
