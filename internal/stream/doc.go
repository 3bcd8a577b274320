// Package stream keeps a live bar subscription running across connection
// faults.
//
// A Session moves through an explicit state machine (see Transition),
// reconnects with jittered exponential backoff and uses a per-symbol cursor
// so bars redelivered after a reconnect are emitted at most once.
package stream
