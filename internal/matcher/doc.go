// Package matcher turns preprocessed quotes and subtitle lines into scored
// correspondences.
//
// The canonical engine compares word overlap between a quote and a subtitle
// line, widening either side across neighbouring units while the score keeps
// improving. The comparison itself is delegated to a Scorer so the cosine
// term-frequency similarity can replace plain overlap. A third variant hands
// the whole batch to an external analysis process through the narrow Analyzer
// interface and folds its line-oriented output back into a MatchSet.
//
// Matchers report progress through a callback with integer percentages that
// never decrease. Cancellation is observed between quotes.
package matcher
