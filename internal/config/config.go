// Package config loads the hub configuration from TOML.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the websubhub configuration
type Config struct {
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`
	Timeout Timeout `toml:"timeout"`
	Hub     Hub     `toml:"hub"`
	DB      DB      `toml:"db"`
	Auth    Auth    `toml:"auth"`
}

// Read loads the default configuration and overlays the file at path, if any
func Read(path string) (Config, error) {
	c, err := defaultConfig()
	if err != nil {
		return Config{}, errors.WithMessage(err, "initializing default config")
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading config from %s", path)
		}

		if err = toml.Unmarshal(b, &c); err != nil {
			return Config{}, errors.Wrapf(err, "unmarshaling toml config from %s", path)
		}
	}

	for _, cv := range []converter{&c.Server, &c.Log, &c.Timeout, &c.Hub} {
		if err := cv.Convert(); err != nil {
			return Config{}, errors.WithMessage(err, "converting config values")
		}
	}

	return c, nil
}

func defaultConfig() (Config, error) {
	var def Config

	if err := toml.Unmarshal([]byte(DefaultCfg), &def); err != nil {
		return Config{}, errors.Wrap(err, "parsing default config")
	}

	return def, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", name)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}
