// Package revision defines the content-addressed data model shared by every
// other acorn package.
//
// An entry is immutable record content, identified by the hash of its
// canonical bytes. A header describes one write (create, update or delete)
// by one author and has its own address. A logical record is the tree of
// headers reachable from a create header through update back-references;
// its current value is the entry of the tip selected by Tip.
//
// Key constraints:
//   - Entry hashes depend only on canonical bytes, never on author or time
//   - Canonical JSON carries integers only; fractional numbers are rejected
//   - All JSON tags use snake_case
//   - revision imports nothing internal
package revision
