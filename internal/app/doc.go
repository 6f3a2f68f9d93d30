// Package app runs the watcher engine.
//
// A Registry builds one Watcher per (subscriber, subscription) pair. Each Watcher
// polls its service adapter, renders the result, and publishes a ChangeEvent only
// when the rendered output differs from the subscription's cached snapshot.
// Depends on domain interfaces, not concrete adapters.
package app
