// Package hive multiplexes periodic callback groups onto one interval timer.
//
// # Overview
//
// Clients create Groups, each with a period in milliseconds and a set of
// callbacks, and register them with a Hive. Start computes the tick as the
// greatest common divisor of all registered periods, arms a single Timer at
// that tick and launches one consumer goroutine. On every tick the consumer
// decrements a per-group counter and fires the groups whose counter reaches
// zero, then reloads the counter with period/tick.
//
// # State machine
//
// A Hive is either inactive or active. Add, Remove and Clear are only legal
// while inactive; Start requires an inactive hive with at least one group and
// Stop requires an active one. Illegal calls return an error wrapping
// ErrInvalidState and leave the registry untouched.
//
// # Callbacks
//
// All callbacks run on the consumer goroutine, one tick at a time, so they
// need not be safe for concurrent use with each other. They must be fast and
// must not block: ticks are not queued, a tick that arrives while the
// consumer is still busy is lost. Callbacks must not call the lifecycle
// methods (Add, Remove, Clear, Start, Stop, Shutdown) of the hive running
// them. Running, Len, Tick and Stats are lock-free and safe to call from a
// callback. A panicking callback is a contract violation and is not recovered.
//
// # Process instance
//
// Get returns the process-wide hive backed by the real clock. Call Shutdown
// on it before the process exits; it stops the hive if it is still active.
// New builds independent hives, typically with a fake clock in tests.
package hive
