// Package textutil provides the word-level primitives shared by the matchers:
// whitespace word splitting, overlap counting, term-frequency fingerprints with
// cosine similarity, and filename sanitization for result files.
//
// Overlap counting pairs each word of one sequence with at most one unused,
// equal word of the other; the fingerprint variant compares term-frequency
// vectors instead and ignores word order and multiplicity limits.
package textutil
