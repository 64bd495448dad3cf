// Package goSession issues and checks signed session tokens for HTTP services.
//
// An [Engine] mints JWT access/refresh pairs on login, rotates refresh tokens
// exactly once, revokes both on logout and answers per-request authorization
// questions against a role set. Every issued token is also recorded by its jti
// in an allow-list (in-process or Redis); a token that verifies but is not on
// its list is rejected. A single-use password reset workflow sits on the same
// stores.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config] and the
// [UserDirectory] collaborator interface. Flow orchestration and audit
// dispatch live under internal/. The token codec and the stores are public
// sub-packages (jwt, allowlist, reset) so they can be reused or replaced.
//
// # What this package must NOT do
//
//   - Own user records or password hashing; the UserDirectory does.
//   - Return the precise reason for a denial. Callers see ErrUnauthorized,
//     ErrForbidden, ErrInvalidCredentials or ErrInvalidRefresh; the reason
//     goes to the logger, audit sink and metrics.
//   - Fall back to in-process stores when Redis is configured but unreachable,
//     unless Store.AllowMemoryFallback says so.
package goSession
