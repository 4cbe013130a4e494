// Package services defines shared utilities consumed by the alignment pipeline
// stages and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (parse, subprocess, chain stage, configuration) so the coordinator and
//     CLI can report them uniformly.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
