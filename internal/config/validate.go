package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable. Stage names are resolved by
// the pipeline packages when a run is built; only structural checks live here.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Scenes.MaxGapMillis < 0 {
		return errors.New("scenes.max_gap_ms must not be negative")
	}
	if c.Tasks.Limit < 1 {
		return errors.New("tasks.limit must be at least 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return c.Pipeline.Validate()
}

// Validate checks the pipeline description for values no run could use.
func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.Matcher) == "" {
		return errors.New("pipeline.matcher must be set")
	}
	if strings.TrimSpace(p.Formatter) == "" {
		return errors.New("pipeline.formatter must be set")
	}
	for i, value := range p.Params {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("pipeline.params[%d] must be a finite number", i)
		}
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.TimeoutSeconds < 0 {
		return errors.New("analyzer.timeout_seconds must be zero or positive")
	}
	if c.Pipeline.Matcher == "external" && c.Analyzer.Command == "" {
		return errors.New("analyzer.command must be set when pipeline.matcher is external (or set BOOKSYNC_ANALYZER_COMMAND)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
