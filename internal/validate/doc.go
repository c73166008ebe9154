// Package validate decides whether a proposed revision may enter the local
// ledger.
//
// Validation is invoked by the storage substrate once per header, whether the
// header was authored locally or arrived through replication. Callbacks are
// stateless and idempotent: the same record may be offered many times, for
// example again after a missing dependency arrives.
//
// Every callback returns an Outcome, never an error:
//   - Valid: accept the revision
//   - Invalid(reason): reject it permanently
//   - Unresolved(missing...): a needed revision is not local yet; the
//     substrate retries later. This is not a failure.
package validate
