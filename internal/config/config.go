package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Pipeline enumerates the processing sequence of one alignment run: the
// ordered preprocessing stages, the matcher with its positional parameter
// vector, the ordered postprocessing filters, and the formatter.
type Pipeline struct {
	Preprocessors  []string  `toml:"preprocessors"`
	Matcher        string    `toml:"matcher"`
	Params         []float64 `toml:"params"`
	Postprocessors []string  `toml:"postprocessors"`
	Formatter      string    `toml:"formatter"`
}

// Scenes contains configuration for deriving scenes from subtitle timing.
type Scenes struct {
	// MaxGapMillis is the silence between two subtitle lines (end of the first
	// to start of the next) that starts a new scene.
	MaxGapMillis int `toml:"max_gap_ms"`
}

// Tasks contains configuration for the bounded task buffer used by batch runs.
type Tasks struct {
	Limit int `toml:"limit"`
}

// Analyzer contains configuration for the external linguistic-analysis
// process used by the "external" matcher.
type Analyzer struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Worker controls whether runs execute in an isolated child process.
type Worker struct {
	Isolated bool `toml:"isolated"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for booksync.
//
// Configuration sections by subsystem:
//   - Paths: data (result store), output, and log directories
//   - Pipeline: preprocessors, matcher + parameters, postprocessors, formatter
//   - Scenes: timing threshold for scene derivation
//   - Tasks: concurrency limit for batch runs
//   - Analyzer: external analysis process for the "external" matcher
//   - Worker: child-process isolation of runs
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Scenes   Scenes   `toml:"scenes"`
	Tasks    Tasks    `toml:"tasks"`
	Analyzer Analyzer `toml:"analyzer"`
	Worker   Worker   `toml:"worker"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("booksync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the SQLite result store.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "runs.db")
}

// SceneGap returns the scene threshold as a duration.
func (c *Config) SceneGap() time.Duration {
	return time.Duration(c.Scenes.MaxGapMillis) * time.Millisecond
}

// AnalyzerTimeout returns the external analyzer timeout; zero disables it.
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy so a run can hold an immutable snapshot.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Pipeline = c.Pipeline.Clone()
	out.Analyzer.Args = append([]string(nil), c.Analyzer.Args...)
	return &out
}

// Clone returns a deep copy of the pipeline description.
func (p Pipeline) Clone() Pipeline {
	return Pipeline{
		Preprocessors:  append([]string(nil), p.Preprocessors...),
		Matcher:        p.Matcher,
		Params:         append([]float64(nil), p.Params...),
		Postprocessors: append([]string(nil), p.Postprocessors...),
		Formatter:      p.Formatter,
	}
}
