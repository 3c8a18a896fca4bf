// config.go loads mockinject.toml.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kolkov/inlinemock/cmd/mockinject/instrument"
)

// ConfigFile is the name of the configuration file.
const ConfigFile = "mockinject.toml"

// Config represents a mockinject.toml file.
//
// Example:
//
//	[instrument]
//	types = ["Account", "Ledger"]
//	exclude_methods = ["String"]
//
//	[log]
//	verbosity = 1
type Config struct {
	Instrument InstrumentConfig `toml:"instrument"`
	Log        LogConfig        `toml:"log"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// InstrumentConfig selects what gets hooked.
type InstrumentConfig struct {
	Types          []string `toml:"types"`
	ExcludeMethods []string `toml:"exclude_methods"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Options converts the instrument section for the injector.
func (c *Config) Options() *instrument.Options {
	if c == nil {
		return &instrument.Options{}
	}
	return &instrument.Options{
		Types:          c.Instrument.Types,
		ExcludeMethods: c.Instrument.ExcludeMethods,
	}
}

// LoadConfig parses mockinject.toml from dir.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return &c, nil
}

// FindConfig walks up from startDir to find mockinject.toml, then loads it.
// It returns an empty Config if there is none.
func FindConfig(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
			return LoadConfig(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return &Config{}, nil
		}
		dir = parent
	}
}
