// Package postprocess prunes a candidate MatchSet with an ordered chain of
// filters.
//
// Filters only remove entries. Chain.Run enforces this after every stage, so a
// filter that adds, duplicates, or reorders matches aborts the run instead of
// corrupting downstream output. The built-in filters are the timeline filters
// (one per axis), scene voting, and best-score selection per subtitle line.
package postprocess
