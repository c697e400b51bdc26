// Package config loads gitcheck settings from defaults, an optional YAML
// file and GITCHECK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/grove-gitcheck/pkg/check"
	"github.com/mattsolo1/grove-gitcheck/pkg/discovery"
	"github.com/mattsolo1/grove-gitcheck/pkg/report"
	"github.com/mattsolo1/grove-gitcheck/pkg/repo"
)

// Environment variables consulted by Load.
const (
	EnvWorkers     = "GITCHECK_WORKERS"
	EnvTimeout     = "GITCHECK_TIMEOUT"
	EnvExclude     = "GITCHECK_EXCLUDE"
	EnvShowUnknown = "GITCHECK_SHOW_UNKNOWN"
	EnvColor       = "GITCHECK_COLOR"
)

// FileName is the config file looked up in the user config directory.
const FileName = "config.yml"

var ErrInvalid = errors.New("invalid configuration")

// Config holds every tunable setting.
type Config struct {
	Workers        int           `yaml:"workers"`
	Timeout        time.Duration `yaml:"timeout"`
	ShowUnknown    bool          `yaml:"show_unknown"`
	Strict         bool          `yaml:"strict"`
	Color          string        `yaml:"color"`
	FollowSymlinks bool          `yaml:"follow_symlinks"`
	Marker         string        `yaml:"marker"`
	Exclude        []string      `yaml:"exclude"`
	Command        []string      `yaml:"command"`
	CleanMarkers   []string      `yaml:"clean_markers"`
	SyncMarkers    []string      `yaml:"sync_markers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:        check.DefaultWorkers(),
		Timeout:        repo.DefaultTimeout,
		ShowUnknown:    true,
		Color:          report.ColorAlways,
		FollowSymlinks: true,
		Marker:         discovery.DefaultMarker,
		Command:        append([]string(nil), repo.DefaultCommand...),
		CleanMarkers:   append([]string(nil), repo.DefaultCleanMarkers...),
		SyncMarkers:    append([]string(nil), repo.DefaultSyncMarkers...),
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gitcheck", FileName), nil
}

// Load builds the configuration. When path is empty the default location is
// used and a missing file is not an error; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := cfg.mergeEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWorkers); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvWorkers, v, err)
		}
		c.Workers = n
	}

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvTimeout, v, err)
		}
		c.Timeout = d
	}

	if v, ok := lookup(EnvExclude); ok {
		patterns := lo.Map(strings.Split(v, ","), func(p string, _ int) string {
			return strings.TrimSpace(p)
		})
		c.Exclude = append(c.Exclude, lo.Compact(patterns)...)
	}

	if v, ok := lookup(EnvShowUnknown); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvShowUnknown, v, err)
		}
		c.ShowUnknown = b
	}

	if v, ok := lookup(EnvColor); ok && strings.TrimSpace(v) != "" {
		c.Color = strings.ToLower(strings.TrimSpace(v))
	}

	return nil
}

// Validate rejects settings the run cannot work with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return fmt.Errorf("%w: command must not be empty", ErrInvalid)
	}
	if len(lo.Compact(c.CleanMarkers)) == 0 {
		return fmt.Errorf("%w: at least one clean marker is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Marker) == "" {
		return fmt.Errorf("%w: marker must not be empty", ErrInvalid)
	}
	switch c.Color {
	case report.ColorAlways, report.ColorAuto, report.ColorNever:
	default:
		return fmt.Errorf("%w: color must be always, auto or never, got %q", ErrInvalid, c.Color)
	}
	return nil
}

// Classifier returns the status classifier described by the configuration.
func (c Config) Classifier() repo.Classifier {
	return repo.Classifier{
		CleanMarkers: c.CleanMarkers,
		SyncMarkers:  c.SyncMarkers,
	}
}
