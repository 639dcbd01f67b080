// Package model implements the address space the synchronization engine
// runs against: named objects and typed variables, change notification,
// serialization domains and sender identities.
//
// ARCHITECTURE:
//
// Variables:
// A Variable holds one ir.Value. Set replaces the whole value; SetElement
// patches one element of a rank-1 array. Every committed write produces a
// Notification carrying the new and old value, the index path (empty for a
// whole-value replace) and the sender that performed it.
//
// Domains:
// Observers register against a variable inside a Domain (an affinity
// domain). Each Domain owns one goroutine and delivers its notifications
// one at a time in commit order. Different domains run concurrently and
// share nothing. Suspend defers delivery for a domain until the returned
// resume func is called; notifications queue up meanwhile.
//
// Senders:
// The sender of a write is taken from the context passed to Set, see
// WithSender. Contexts handed to callbacks carry the cascade depth of the
// notification being handled, so writes made from a callback are stamped
// one level deeper. Writes beyond the space's cascade limit are refused.
//
// Journal:
// Every committed write is appended to the space's Journal (if any) after
// the value changes. Journal failures are logged and never fail the write.
package model
