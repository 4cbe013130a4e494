// Package model defines the values that flow through an alignment run:
// quotes taken from a book, time-coded subtitle lines, and the scored matches
// between them.
//
// Quote and SubtitleLine sequences are produced once by the parser and are
// read-only afterwards. A MatchSet is produced once by a matcher and then only
// shrinks: every postprocessing filter returns an ordered subsequence of its
// input, which IsSubsequenceOf verifies.
package model
