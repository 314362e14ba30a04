package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidConfig is returned for an unknown level, format or an
// unusable output.
var ErrInvalidConfig = errors.New("invalid logging configuration")

// Config describes the logger built by NewLogger.
type Config struct {
	// Level is the minimum level written: debug, info, warn or error.
	// Empty means info.
	Level string
	// Format is json (default) or text; console is an alias for text.
	Format string
	// Output is stderr (default), stdout or a file path opened for append.
	Output string
}

// ParseLevel resolves a level name case-insensitively. WARNING is accepted
// for WARN.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel, nil
	case "", "INFO":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	}
	return "", fmt.Errorf("%w: level %q", ErrInvalidConfig, level)
}

// ParseFormat resolves an output format name.
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	}
	return "", fmt.Errorf("%w: format %q", ErrInvalidConfig, format)
}

// Validate checks the level and the format. The output is only checked
// when the logger opens it.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	_, err := ParseFormat(c.Format)
	return err
}

// NewLogger builds a logger from cfg; a nil cfg logs info and above as
// JSON to stderr. A file output stays open until Close.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	logger := New(level, out)
	logger.format = format
	logger.sink.closer = closer
	return logger, nil
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: output %q: %w", ErrInvalidConfig, output, err)
	}
	return file, file, nil
}
