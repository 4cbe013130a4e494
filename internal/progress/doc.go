// Package progress carries run telemetry from the pipeline to whoever is
// watching: percentages, phase messages, streamed result content, and the
// terminal result.
//
// Producers talk to a Sink and are never blocked by it. Channel buffers a
// bounded history with sequence numbers so late readers can catch up with
// Fetch, and fans events out to live subscribers that drop what they cannot
// keep up with. JSONLines moves events across a process boundary.
package progress
