// Package store persists alignment runs and their final match sets in SQLite.
//
// A run row is created when the coordinator starts and is finished or failed
// exactly once. Matches are written in a single transaction by the store
// formatter, so a run either has its complete match set or none.
package store
