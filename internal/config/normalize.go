package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeAnalyzer()
	c.normalizeLogging()
	if c.Scenes.MaxGapMillis == 0 {
		c.Scenes.MaxGapMillis = defaultSceneGapMillis
	}
	if c.Tasks.Limit == 0 {
		c.Tasks.Limit = defaultTaskLimit
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline = c.Pipeline.Normalize()
}

// Normalize lowercases and trims every stage name and fills in the default
// matcher and formatter.
func (p Pipeline) Normalize() Pipeline {
	out := p.Clone()
	out.Preprocessors = normalizeNames(p.Preprocessors)
	out.Postprocessors = normalizeNames(p.Postprocessors)
	out.Matcher = strings.ToLower(strings.TrimSpace(p.Matcher))
	if out.Matcher == "" {
		out.Matcher = defaultMatcher
	}
	out.Formatter = strings.ToLower(strings.TrimSpace(p.Formatter))
	if out.Formatter == "" {
		out.Formatter = defaultFormatter
	}
	return out
}

func (c *Config) normalizeAnalyzer() {
	c.Analyzer.Command = strings.TrimSpace(c.Analyzer.Command)
	if c.Analyzer.Command == "" {
		if value, ok := os.LookupEnv("BOOKSYNC_ANALYZER_COMMAND"); ok {
			c.Analyzer.Command = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if value, ok := os.LookupEnv("BOOKSYNC_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeNames lowercases and trims stage names, dropping blanks. Order is
// preserved and duplicates are allowed.
func normalizeNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}
