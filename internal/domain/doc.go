// Package domain holds the vocabulary shared by watchers and adapters:
// service kinds, the normalized CanonicalUpdate record, change events, and
// the error types a fetch or render can fail with.
package domain
