// Package config holds the driver settings that can live in a YAML file next
// to the programs being compiled. Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultFilename = "x64cc.yml"

// ColorMode selects when diagnostics are styled.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config is the driver configuration.
type Config struct {
	Snapshots bool      `yaml:"snapshots"`
	Annotate  bool      `yaml:"annotate"`
	Verify    bool      `yaml:"verify"`
	PNG       bool      `yaml:"png"`
	Color     ColorMode `yaml:"color"`
	OutDir    string    `yaml:"out_dir"`
}

func Default() Config {
	return Config{Color: ColorAuto}
}

// Load reads a config file. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a config document. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	color, err := ParseColor(string(cfg.Color))
	if err != nil {
		return Config{}, err
	}
	cfg.Color = color
	return cfg, nil
}

// ParseColor validates a colour mode. The empty string means auto.
func ParseColor(s string) (ColorMode, error) {
	switch m := ColorMode(s); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	case "":
		return ColorAuto, nil
	}
	return "", fmt.Errorf("color must be auto, always or never, got %q", s)
}
