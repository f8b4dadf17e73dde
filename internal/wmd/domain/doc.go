// Package domain holds the pure WMD core state machines: per-player research
// ledgers, clan authorization votes, and the missile/battery combat assets.
//
// Types in this package carry no storage or transport concerns. Constructors
// accept injected clocks and id generators so behavior is deterministic under
// test; every state transition validates its preconditions and returns a
// typed error instead of mutating on failure.
package domain
