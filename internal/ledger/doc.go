// Package ledger is the SQLite-backed local substrate for acorn revisions.
//
// The ledger is append-only:
//   - Entries: canonical entry bytes keyed by content hash
//   - Headers: signed write metadata, in acceptance order
//   - Links: tagged index edges (base -> target)
//   - Paths: well-known anchor names
//   - Pending: received revisions waiting on a missing dependency
//
// Every header offered for acceptance, local or received, passes through the
// configured Validator first. Local writes that fail validation are never
// committed. Received revisions that are Unresolved are parked and re-offered
// after each successful acceptance.
//
// # Ordering
//
// List queries never expose acceptance order. Revisions are ordered by
// (timestamp, seq, hash) and links by (timestamp, target, author), so two
// peers holding the same data return identical results.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
