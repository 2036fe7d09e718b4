package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command's flags for YAML config files. Only fields
// whose flag was not set on the command line are applied.
type fileConfig struct {
	Input         string  `yaml:"input"`
	Output        string  `yaml:"output"`
	PagesPerSheet int     `yaml:"pages_per_sheet"`
	Padding       float64 `yaml:"padding"`
	Workers       int     `yaml:"workers"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// apply copies config-file values into the flag destinations, skipping any
// flag the user set explicitly and any zero-valued config field.
func (c *fileConfig) apply(flagSet *pflag.FlagSet, input, output *string, pages *int, padding *float64, workers *int) {
	if !flagSet.Changed("input") && c.Input != "" {
		*input = c.Input
	}
	if !flagSet.Changed("output") && c.Output != "" {
		*output = c.Output
	}
	if !flagSet.Changed("pages-per-sheet") && c.PagesPerSheet != 0 {
		*pages = c.PagesPerSheet
	}
	if !flagSet.Changed("padding") && c.Padding != 0 {
		*padding = c.Padding
	}
	if !flagSet.Changed("workers") && c.Workers != 0 {
		*workers = c.Workers
	}
}
