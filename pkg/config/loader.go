package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that normalize fields and
// check cross-field constraints after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into the provided struct, then runs its
// Validate hook when implemented. The struct should use `env` tags to define
// mappings.
//
// Example:
//
//	type Config struct {
//	    BaseURL  string `env:"ARROW3_API_BASE_URL" envDefault:"http://localhost:5000/api"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
