package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration, stored as circuitsync.yaml in
// the project directory. All fields have working defaults so the file
// is optional.
type Config struct {
	// Root is the root document file name.
	Root string `yaml:"root"`

	// Paper is the page size used for newly created fragments.
	Paper string `yaml:"paper"`

	// Libraries are directories searched for .kicad_sym files.
	Libraries []string `yaml:"libraries"`

	// Cache is the symbol cache database path, empty to disable.
	Cache string `yaml:"cache"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Root:  "main.kicad_sch",
		Paper: "A4",
	}
}

var validPapers = map[string]bool{"A2": true, "A3": true, "A4": true, "A5": true}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root document name must not be empty")
	}
	if !validPapers[c.Paper] {
		return fmt.Errorf("unsupported paper size %q", c.Paper)
	}
	return nil
}

// LoadConfig reads a YAML configuration file into target, expanding
// environment variables and validating the result.
func LoadConfig(filename string, target *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := target.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
