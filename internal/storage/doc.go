// Package storage keeps a history of hive runs.
//
// Each record is a snapshot of a running hive: the tick, how many ticks the
// consumer handled, and per-group expected vs actual firings. Records are
// appended by the periodic reporter and once more when a run stops.
package storage
