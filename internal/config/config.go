// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/frame"
	"github.com/copyleftdev/curvefit/internal/logging"
	"github.com/copyleftdev/curvefit/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Fit struct {
		Methods       []string `env:"FIT_METHODS" envDefault:"lm,bfgs,nelder-mead" envSeparator:","`
		Fraction      float64  `env:"FIT_FRACTION" envDefault:"0.9"`
		Overfit       float64  `env:"FIT_OVERFIT" envDefault:"-1"`
		Sigma         float64  `env:"FIT_SIGMA" envDefault:"10"`
		ErrorTo       int      `env:"FIT_ERROR_TO" envDefault:"2"`
		Seed          int64    `env:"FIT_SEED" envDefault:"0"`
		Workers       int      `env:"FIT_WORKERS" envDefault:"4"`
		MaxIterations int      `env:"FIT_MAX_ITERATIONS" envDefault:"0"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Verbose by default while developing
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTP.Port)
	}
	if err := c.LoggerConfig().Validate(); err != nil {
		return err
	}
	if c.Fit.Workers < 1 {
		return fmt.Errorf("FIT_WORKERS must be at least 1, got %d", c.Fit.Workers)
	}
	if _, err := c.FrameOptions(); err != nil {
		return fmt.Errorf("invalid fit defaults: %w", err)
	}
	return nil
}

// FrameOptions converts the fit settings into frame options.
func (c *Config) FrameOptions() (frame.Options, error) {
	methods, err := optimization.ParseMethods(c.Fit.Methods)
	if err != nil {
		return frame.Options{}, err
	}

	opts := frame.DefaultOptions()
	opts.Methods = methods
	opts.Workers = c.Fit.Workers
	opts.Fit = fit.Options{
		Fraction:      c.Fit.Fraction,
		Overfit:       c.Fit.Overfit,
		Sigma:         c.Fit.Sigma,
		ErrorTo:       c.Fit.ErrorTo,
		Seed:          c.Fit.Seed,
		MaxIterations: c.Fit.MaxIterations,
	}
	if err := opts.Fit.Validate(); err != nil {
		return frame.Options{}, err
	}
	return opts, nil
}

// LoggerConfig returns the logging settings.
func (c *Config) LoggerConfig() *logging.Config {
	return &logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
