// Package internal holds helpers private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - rate: Redis fixed-window attempt limiter used by cmd/sessiond
//
// Nothing here is part of the public API.
package internal
