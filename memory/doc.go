// Package memory provides the agents' recall substrate: a Manager with
// short-term and long-term key/value stores plus consolidation, a semantic
// store with vector similarity retrieval backed by chromem-go, and a scoped
// context protocol for private/shared/global facts with relevance scoring
// and expiry.
package memory
