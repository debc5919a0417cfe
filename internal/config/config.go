// Package config reads and validates the hoard TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/Shadow53/save-hoarder/internal/hoard"
	"github.com/Shadow53/save-hoarder/internal/match"
)

// Config is the top-level hoard configuration.
type Config struct {
	// Environment selects which [piles.environments.<name>] overrides
	// apply. The HOARD_ENV variable takes precedence over this field.
	Environment string       `toml:"environment,omitempty"`
	Settings    Settings     `toml:"settings"`
	Piles       []PileConfig `toml:"piles"`
}

// Settings holds tool-wide paths and tuning knobs.
type Settings struct {
	StateDir  string        `toml:"state_dir,omitempty"`
	HistoryDB string        `toml:"history_db,omitempty"`
	LogDir    string        `toml:"log_dir,omitempty"`
	Parallel  int           `toml:"parallel,omitempty"`
	Retry     RetrySettings `toml:"retry,omitempty"`
}

// RetrySettings tunes filesystem retry behavior.
type RetrySettings struct {
	Attempts  int `toml:"attempts,omitempty"`
	WaitMS    int `toml:"wait_ms,omitempty"`
	TimeoutMS int `toml:"timeout_ms,omitempty"`
}

// Wait returns the configured wait between attempts.
func (r RetrySettings) Wait() time.Duration { return time.Duration(r.WaitMS) * time.Millisecond }

// Timeout returns the configured per-attempt timeout.
func (r RetrySettings) Timeout() time.Duration { return time.Duration(r.TimeoutMS) * time.Millisecond }

// PileConfig defines one pile: a named source/destination mapping plus
// ignore patterns. A pile may instead carry [[piles.paths]] sub-mappings,
// which become piles named "<name>/<sub>".
type PileConfig struct {
	Name         string                 `toml:"name"`
	Source       string                 `toml:"source,omitempty"`
	Destination  string                 `toml:"destination,omitempty"`
	Ignore       []string               `toml:"ignore,omitempty"`
	Environments map[string]EnvOverride `toml:"environments,omitempty"`
	Paths        []SubPathConfig        `toml:"paths,omitempty"`
}

// SubPathConfig is one mapping of a multi-path pile.
type SubPathConfig struct {
	Name         string                 `toml:"name"`
	Source       string                 `toml:"source"`
	Destination  string                 `toml:"destination"`
	Ignore       []string               `toml:"ignore,omitempty"`
	Environments map[string]EnvOverride `toml:"environments,omitempty"`
}

// EnvOverride replaces a pile's roots when its environment is selected.
// Empty fields keep the pile's base value.
type EnvOverride struct {
	Source      string `toml:"source,omitempty"`
	Destination string `toml:"destination,omitempty"`
}

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

var pileNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes a starter config at path; it refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config at %s: %w", path, err)
	}
	return nil
}

// NewConfig returns a starter configuration for `hoard config init`.
func NewConfig(stateDir string) *Config {
	return &Config{
		Settings: Settings{
			StateDir: stateDir,
			Parallel: 4,
			Retry:    RetrySettings{Attempts: 3, WaitMS: 500, TimeoutMS: 30000},
		},
		Piles: []PileConfig{{
			Name:        "dotfiles",
			Source:      "~/.config",
			Destination: filepath.Join(stateDir, "hoards", "dotfiles"),
			Ignore:      []string{"*.log", "cache/"},
		}},
	}
}

// Validate checks the whole configuration and returns every problem found,
// each as a ConfigError, joined into one error.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Piles) == 0 {
		result = multierror.Append(result, &ConfigError{Field: "piles", Msg: "no piles configured"})
	}

	seen := make(map[string]bool)
	for i, pile := range c.Piles {
		field := fmt.Sprintf("piles[%d]", i)
		if pile.Name == "" {
			result = multierror.Append(result, &ConfigError{Field: field + ".name", Msg: "pile name is required"})
			continue
		}
		if !pileNamePattern.MatchString(pile.Name) {
			result = multierror.Append(result, &ConfigError{
				Field: field + ".name",
				Msg:   fmt.Sprintf("invalid pile name %q", pile.Name),
			})
		}
		if seen[pile.Name] {
			result = multierror.Append(result, &ConfigError{
				Field: field + ".name",
				Msg:   fmt.Sprintf("duplicate pile name %q", pile.Name),
			})
		}
		seen[pile.Name] = true

		if len(pile.Paths) == 0 {
			result = appendMappingErrors(result, field, pile.Source, pile.Destination, pile.Ignore)
			continue
		}

		// Multi-path pile: the base mapping must be absent, every sub-path
		// carries its own.
		if pile.Source != "" || pile.Destination != "" {
			result = multierror.Append(result, &ConfigError{
				Field: field,
				Msg:   "a pile with [[piles.paths]] cannot also set source/destination",
			})
		}
		subSeen := make(map[string]bool)
		for j, sub := range pile.Paths {
			subField := fmt.Sprintf("%s.paths[%d]", field, j)
			if sub.Name == "" {
				result = multierror.Append(result, &ConfigError{Field: subField + ".name", Msg: "path name is required"})
				continue
			}
			if !pileNamePattern.MatchString(sub.Name) {
				result = multierror.Append(result, &ConfigError{
					Field: subField + ".name",
					Msg:   fmt.Sprintf("invalid path name %q", sub.Name),
				})
			}
			if subSeen[sub.Name] {
				result = multierror.Append(result, &ConfigError{
					Field: subField + ".name",
					Msg:   fmt.Sprintf("duplicate path name %q", sub.Name),
				})
			}
			subSeen[sub.Name] = true
			result = appendMappingErrors(result, subField, sub.Source, sub.Destination, sub.Ignore)
		}
	}

	return result.ErrorOrNil()
}

func appendMappingErrors(result *multierror.Error, field, source, destination string, ignore []string) *multierror.Error {
	if source == "" {
		result = multierror.Append(result, &ConfigError{Field: field + ".source", Msg: "source is required"})
	}
	if destination == "" {
		result = multierror.Append(result, &ConfigError{Field: field + ".destination", Msg: "destination is required"})
	}
	if source != "" && source == destination {
		result = multierror.Append(result, &ConfigError{Field: field, Msg: "source and destination are the same path"})
	}
	if _, err := match.Compile(ignore); err != nil {
		result = multierror.Append(result, &ConfigError{Field: field + ".ignore", Msg: err.Error()})
	}
	return result
}

// ActiveEnvironment returns the environment in effect: HOARD_ENV when set,
// otherwise the config's environment field.
func (c *Config) ActiveEnvironment() string {
	if env := os.Getenv("HOARD_ENV"); env != "" {
		return env
	}
	return c.Environment
}

// ResolvePiles flattens the configuration into concrete piles: environment
// overrides applied, ${VAR} and leading ~ expanded, ignore patterns
// compiled, multi-path piles flattened to "<pile>/<path>" names.
func (c *Config) ResolvePiles() ([]hoard.Pile, error) {
	env := c.ActiveEnvironment()

	var piles []hoard.Pile
	for _, pc := range c.Piles {
		if len(pc.Paths) == 0 {
			pile, err := resolvePile(pc.Name, pc.Source, pc.Destination, pc.Ignore, pc.Environments, env)
			if err != nil {
				return nil, err
			}
			piles = append(piles, pile)
			continue
		}
		for _, sub := range pc.Paths {
			pile, err := resolvePile(pc.Name+"/"+sub.Name, sub.Source, sub.Destination, sub.Ignore, sub.Environments, env)
			if err != nil {
				return nil, err
			}
			piles = append(piles, pile)
		}
	}
	return piles, nil
}

func resolvePile(name, source, destination string, ignore []string, overrides map[string]EnvOverride, env string) (hoard.Pile, error) {
	if env != "" {
		if o, ok := overrides[env]; ok {
			if o.Source != "" {
				source = o.Source
			}
			if o.Destination != "" {
				destination = o.Destination
			}
		}
	}

	src, err := ExpandPath(source)
	if err != nil {
		return hoard.Pile{}, &ConfigError{Field: name + ".source", Msg: err.Error()}
	}
	dst, err := ExpandPath(destination)
	if err != nil {
		return hoard.Pile{}, &ConfigError{Field: name + ".destination", Msg: err.Error()}
	}

	patterns, err := match.Compile(ignore)
	if err != nil {
		return hoard.Pile{}, &ConfigError{Field: name + ".ignore", Msg: err.Error()}
	}

	return hoard.Pile{
		Name:            name,
		SourceRoot:      src,
		DestinationRoot: dst,
		Patterns:        patterns,
	}, nil
}

// ExpandPath expands ${VAR} references and a leading ~ in a configured
// path. An unset variable is an error rather than an empty expansion: a
// path silently collapsing to "/" must never reach a scan or a delete.
func ExpandPath(path string) (string, error) {
	var missing []string
	expanded := os.Expand(path, func(name string) string {
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined environment variable(s) %s in %q", strings.Join(missing, ", "), path)
	}

	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving ~: %w", err)
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	return filepath.Clean(expanded), nil
}
