// Package preprocess normalizes quote and subtitle text before matching.
//
// A Chain is an ordered list of Stage values folded left to right over one
// unit of text. A stage returning the empty string drops the unit and the
// remaining stages are not invoked. Stages are pure apart from read-only word
// lists that are loaded once per process.
package preprocess
