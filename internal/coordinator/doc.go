// Package coordinator sequences one alignment run: it parses the book and the
// subtitle transcript concurrently, joins the two results, triggers the
// matcher exactly once, folds the match set through the postprocessing chain
// and hands the survivors to a formatter.
//
// A Run is the per-run context object. It owns the configuration snapshot,
// the progress sink, the logger, the parsed inputs and the settable-once
// trigger guard. Whichever parse result is delivered second runs the rest of
// the pipeline on its own goroutine; any later delivery is rejected and
// logged at debug level.
package coordinator
