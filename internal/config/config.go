// Package config loads the backupkern configuration file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thoreinstein/backupkern/internal/engine"
	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/paths"
)

// EnvPrefix prefixes environment variable overrides, e.g. BACKUPKERN_SOURCE.
const EnvPrefix = "BACKUPKERN"

// Config is the backup configuration.
type Config struct {
	// Source is the directory to back up.
	Source string

	// Destination lists candidate base directories; the first existing one
	// is used.
	Destination []string

	// Prefix is prepended to snapshot names.
	Prefix string

	// Ignore holds paths, prefixes and globs excluded from the backup.
	Ignore []string

	// CompareMode treats permission changes as content changes.
	CompareMode bool

	// EntryTimeout bounds the copy of a single file. Zero disables it.
	EntryTimeout time.Duration

	// File is the configuration file the values were read from.
	File string
}

// legacyKeys maps older key names onto their current names.
var legacyKeys = map[string]string{
	"from":              "source",
	"to":                "destination",
	"exclude.locations": "ignore",
}

// Default returns the configuration written by `backupkern init`.
func Default() *Config {
	return &Config{
		Source:      "~",
		Destination: []string{"/mnt/backup"},
		Prefix:      "home",
		Ignore:      []string{"~/.cache", "*.tmp"},
	}
}

// Load reads the configuration file at path. When path is empty the
// default locations are searched in order and the first existing file is
// used. The result is validated; every failure wraps errors.ErrInvalidConfig.
func Load(path string) (*Config, error) {
	file, err := locate(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("compare_mode", false)
	v.SetDefault("entry_timeout", "0s")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "reading config file %s: %v", file, err)
	}

	for legacy, current := range legacyKeys {
		if !v.IsSet(current) && v.IsSet(legacy) {
			v.Set(current, v.Get(legacy))
		}
	}

	cfg := &Config{
		Source:       v.GetString("source"),
		Destination:  stringList(v.Get("destination")),
		Prefix:       v.GetString("prefix"),
		Ignore:       stringList(v.Get("ignore")),
		CompareMode:  v.GetBool("compare_mode"),
		EntryTimeout: v.GetDuration("entry_timeout"),
		File:         file,
	}

	if errs := Validate(cfg); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "%s: %s", file, strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// locate resolves the configuration file to read.
func locate(path string) (string, error) {
	if path != "" {
		file := paths.ExpandHome(path)
		if _, err := os.Stat(file); err != nil {
			return "", errors.Wrapf(errors.ErrInvalidConfig, "config file not found at %s", file)
		}
		return file, nil
	}

	candidates := paths.ConfigCandidates()
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errors.Wrapf(errors.ErrInvalidConfig, "no config file found (looked in %s)", strings.Join(candidates, ", "))
}

// stringList accepts a single string or a list, the two forms allowed for
// destination and ignore.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// EngineConfig converts the configuration into a run configuration,
// expanding ~ in every path.
func (c *Config) EngineConfig() engine.Config {
	dests := make([]string, 0, len(c.Destination))
	for _, d := range c.Destination {
		dests = append(dests, paths.ExpandHome(d))
	}
	return engine.Config{
		Source:       paths.ExpandHome(c.Source),
		Destinations: dests,
		Prefix:       c.Prefix,
		Ignore:       c.Ignore,
		CompareMode:  c.CompareMode,
		EntryTimeout: c.EntryTimeout,
	}
}
