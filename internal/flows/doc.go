// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunAuthorize, ...) accepts a typed
// dependency struct and returns a result carrying either the outcome or a
// FailureKind. The Engine maps failure kinds onto its public errors, metrics and
// audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Decide what the caller is told. Results carry the precise reason; collapsing
//     it into a public error is the Engine's job.
package flows
