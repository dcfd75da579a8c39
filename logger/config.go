package logger

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

var (
	levels  = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	formats = []string{"json", "console", "pretty"}
)

// Config is the logging section of a service config. Format json is meant
// for deployed services, console for local runs.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

// ApplyDefaults fills empty fields and always enables timestamps.
func (c *Config) ApplyDefaults() {
	c.Level = cmp.Or(c.Level, "info")
	c.Format = cmp.Or(c.Format, "console")
	c.Output = cmp.Or(c.Output, "stdout")
	c.Timestamp = true
}

func (c *Config) Validate() error {
	if !slices.Contains(levels, c.Level) {
		return fmt.Errorf("logging.level must be one of %s (got: %q)", strings.Join(levels, ", "), c.Level)
	}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("logging.format must be one of %s (got: %q)", strings.Join(formats, ", "), c.Format)
	}
	return nil
}

func (c *Config) isConsole() bool {
	f := strings.ToLower(c.Format)
	return f == "console" || f == "pretty"
}

