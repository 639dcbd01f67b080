// Package store provides the SQLite write journal and property store.
//
// The journal is append-only:
//   - writes: every committed variable write, keyed by its logical seq
//   - properties: a small key/value table for CLI state
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Reads
// return writes ORDER BY seq ASC, so a trace reads back in commit order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Values are stored as canonical JSON (ir.MarshalCanonical), so identical
// writes produce identical rows.
package store
