// Package crud is the generic create/read/update/delete engine over the
// append-only ledger.
//
// A record type is a Type[T]: its entry type name, its index Path and a few
// structural flags. Field-level edit policy lives in the validate package
// and runs inside the ledger, so a local write that violates it fails the
// same way a replicated one would.
//
// Current value: a record is its create header plus every update that
// references it, directly or through another update. Fetch walks that tree
// and picks the tip with revision.Tip. A delete of any revision in the tree
// archives the whole record; history is never removed.
package crud
