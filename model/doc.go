// Package model defines the text generation seam worker agents reason
// through, together with provider adapters (Anthropic, OpenAI) and a
// deterministic Static generator for tests.
//
// The contract is deliberately narrow: a prompt and a system prompt in, text
// and an ok flag out. A false ok is a normal degraded condition the caller
// handles by falling back to its own heuristics, never a panic.
package model
