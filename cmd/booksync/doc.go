// Package main hosts the booksync CLI.
//
// The Cobra command tree resolves configuration, builds the logger and the
// result store once per invocation, and hands the actual work to the
// coordinator, worker, store and evaluation packages. Commands only parse
// flags and render output.
package main
