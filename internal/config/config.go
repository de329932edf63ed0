// Package config loads run descriptions from TOML or YAML files.
//
// A file holds global values at top level and named runs under Models. Each
// field of a run is taken from the run itself, then from the global section,
// then from the built-in defaults. Values are read in InputUnits and kept in
// internal units (MeV, cm, rad, MeV/c).
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/facette/natsort"
	"gopkg.in/yaml.v3"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

type Config struct {
	OutputDir string                  `yaml:"OutputDir"`
	LogLevel  string                  `yaml:"LogLevel"`
	Models    map[string]ParameterSet `yaml:"Models"`

	ParameterSet `yaml:",inline"`

	InputUnits  []string `yaml:"InputUnits"`
	OutputUnits []string `yaml:"OutputUnits"`

	defined map[string]struct{}
	env     Environment
}

// Environment holds the MCFIT_* overrides. They win over configuration
// files; command line flags win over them.
type Environment struct {
	Seed      *uint64 `env:"MCFIT_SEED"`
	Events    *int    `env:"MCFIT_EVENTS"`
	Workers   *int    `env:"MCFIT_WORKERS"`
	OutputDir string  `env:"MCFIT_OUTPUT_DIR"`
	LogLevel  string  `env:"MCFIT_LOG_LEVEL"`
}

// ReadEnvironment parses the MCFIT_* variables of the current process.
func ReadEnvironment() (Environment, error) {
	var o Environment
	if err := env.Parse(&o); err != nil {
		return Environment{}, &errs.ConfigurationError{Reason: "environment", Err: err}
	}
	return o, nil
}

// Apply copies the set run overrides into p.
func (o Environment) Apply(p *ParameterSet) {
	if o.Seed != nil {
		p.Seed = *o.Seed
	}
	if o.Events != nil {
		p.Events = *o.Events
	}
	if o.Workers != nil {
		p.Workers = *o.Workers
	}
}

func (c *Config) isDefined(path ...string) bool {
	_, some := c.defined[strings.Join(path, "#")]
	return some
}

// Load reads a configuration file. A name without extension is looked up
// with ".toml".
func Load(path string) (*Config, error) {
	var format Format
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "":
		path += ".toml"
		format = TOML
	case ".toml":
		format = TOML
	case ".yaml", ".yml":
		format = YAML
	default:
		return nil, errs.Config("config", "unsupported file type %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Decode(data, format)
}

// Decode parses data, applies the environment overrides and checks the
// unit lists. Runs are resolved lazily by Model.
func Decode(data []byte, format Format) (*Config, error) {
	c := &Config{defined: map[string]struct{}{}}
	switch format {
	case TOML:
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c)
		if err != nil {
			return nil, &errs.ConfigurationError{Reason: "toml", Err: err}
		}
		for _, key := range meta.Keys() {
			c.defined[strings.Join(key, "#")] = struct{}{}
		}
	case YAML:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, &errs.ConfigurationError{Reason: "yaml", Err: err}
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, &errs.ConfigurationError{Reason: "yaml", Err: err}
		}
		collectKeys(c.defined, nil, tree)
	default:
		return nil, errs.Config("format", "unknown format %q", format)
	}

	var err error
	if c.env, err = ReadEnvironment(); err != nil {
		return nil, err
	}
	if c.env.OutputDir != "" {
		c.OutputDir = c.env.OutputDir
	}
	if c.env.LogLevel != "" {
		c.LogLevel = c.env.LogLevel
	}

	var conflicts, unknown []string
	c.InputUnits, conflicts, unknown = checkUnits(c.InputUnits)
	if len(conflicts) > 0 || len(unknown) > 0 {
		return nil, errs.Config("InputUnits", "conflicting %v, unknown %v", conflicts, unknown)
	}
	if len(c.OutputUnits) == 0 {
		c.OutputUnits = c.InputUnits
	}
	c.OutputUnits, conflicts, unknown = checkUnits(c.OutputUnits)
	if len(conflicts) > 0 || len(unknown) > 0 {
		return nil, errs.Config("OutputUnits", "conflicting %v, unknown %v", conflicts, unknown)
	}
	if len(c.Models) == 0 {
		return nil, errs.Config("Models", "no models provided")
	}
	return c, nil
}

func collectKeys(dst map[string]struct{}, prefix []string, tree map[string]any) {
	for k, v := range tree {
		path := append(append([]string(nil), prefix...), k)
		dst[strings.Join(path, "#")] = struct{}{}
		if sub, ok := v.(map[string]any); ok {
			collectKeys(dst, path, sub)
		}
	}
}

// ModelNames returns the run names in natural order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return natsort.Compare(names[i], names[j]) })
	return names
}

// ToOutput converts a value of the named observable to OutputUnits.
func (c *Config) ToOutput(observable string, v float64) float64 {
	return Convert(v, observableUnits[observable], c.OutputUnits, false)
}

// Label is the observable name with its output unit, e.g. "theta (deg)".
func (c *Config) Label(observable string) string {
	classes := observableUnits[observable]
	if len(classes) == 0 {
		return observable
	}
	return fmt.Sprintf("%s (%s)", observable, UnitOf(classes[0].Class, c.OutputUnits))
}
