// Package scorer is the HTTP client for the external recommendation scorer.
//
// The scorer receives a worker profile and a list of candidate tasks, each
// encoded as a positional triple [complexity, time, tags], and answers with
// the candidates reordered best first. It echoes records back rather than
// identifiers, so callers match responses to inputs by value.
package scorer
