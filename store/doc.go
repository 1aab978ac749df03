// Package store provides core.TaskStore implementations: a volatile
// in-memory store for tests and ephemeral runs, and a sqlite-backed store for
// durable task and result history.
package store
