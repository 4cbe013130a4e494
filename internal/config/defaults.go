package config

const (
	defaultConfigPath     = "~/.config/booksync/config.toml"
	defaultDataDir        = "~/.local/share/booksync"
	defaultOutputDir      = "~/.local/share/booksync/results"
	defaultLogDir         = "~/.local/share/booksync/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLogRetention   = 30
	defaultMatcher        = "overlap"
	defaultFormatter      = "json"
	defaultSceneGapMillis = 5000
	defaultTaskLimit      = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Pipeline: Pipeline{
			Preprocessors:  []string{"clean", "punctuation"},
			Matcher:        defaultMatcher,
			Params:         []float64{0.6, 3, -1, 0.8},
			Postprocessors: []string{"quotetimeline", "scenevote"},
			Formatter:      defaultFormatter,
		},
		Scenes: Scenes{
			MaxGapMillis: defaultSceneGapMillis,
		},
		Tasks: Tasks{
			Limit: defaultTaskLimit,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
