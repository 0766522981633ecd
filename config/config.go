// Package config loads the engine's ambient configuration: the pieces
// of its behavior that are runtime-tunable but not part of any single
// descriptor (spec.md §6 lists persisted/CLI state as out of scope;
// this is what's left once those are excluded).
package config

import (
	"fmt"

	"github.com/Gobusters/ectoenv"
)

// Config is the engine's ambient, environment-driven configuration.
type Config struct {
	AppName    string `env:"APP_NAME" env-default:"spcht-go"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// MarcField names the flat-view key a record's MARC view is
	// distinguished by (spec.md §3: "Record presents a MARC view when
	// a distinguished key ... holds parsed MARC21 data").
	MarcField string `env:"MARC_FIELD" env-default:"fullrecord"`
}

// Load reads Config from the process environment, applying the
// env-default tag value to anything unset.
func Load() (*Config, error) {
	var cfg Config
	if err := ectoenv.Load(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
