// Package config loads, normalizes, and validates booksync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOOKSYNC_LOG_LEVEL and BOOKSYNC_ANALYZER_COMMAND. The Config type carries the
// default pipeline (preprocessors, matcher parameters, postprocessors,
// formatter) along with the directories and process settings the CLI needs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical stage names, and clear validation errors.
package config
