package config

import (
	"errors"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Runtime holds process-level settings outside any pipeline description.
type Runtime struct {
	LogLevel    string `koanf:"log_level"`
	LogJSON     bool   `koanf:"log_json"`
	MetricsPort int    `koanf:"metrics_port"`
}

// LoadRuntime merges YAML (if present) with env vars
// (prefix `AUGPIPE__`, delimiter `__`).
func LoadRuntime(path string) (Runtime, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, err
		}
	}
	_ = k.Load(env.Provider("AUGPIPE__", "__", nil), nil)

	var cfg Runtime
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
