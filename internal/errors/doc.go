// Package errors provides coded, developer-facing errors for flight.
//
// Every error a developer is expected to act on carries a code from the
// registry (for example "E201" for a duplicate route id). Codes map to a short
// message, a longer detail and a documentation link, so the same failure reads
// the same way in the CLI, in logs and in tests.
//
// # Categories
//
//   - config: flight.json and environment problems
//   - routing: malformed route manifests and route trees
//   - protocol: segment stream framing problems
//   - action: server action invocation problems
//   - cli: command line usage
//
// # Usage
//
//	err := errors.New("E201").
//	    WithSource("routes.yaml", 3).
//	    WithSuggestion(`Rename one of the routes with id "posts"`)
//
// Errors wrap their cause, so errors.Is and errors.As from the standard
// library work through them.
package errors
