// Package middleware adapts goSession authorization to net/http.
//
// [Guard] reads the Authorization bearer token, calls Engine.Authorize with the
// route's role set and stores the [goSession.AuthResult] in the request
// context. [RequireAuthenticated] and [RequireRoles] are named shorthands.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Tell the client why a request was denied beyond 401 versus 403.
package middleware
