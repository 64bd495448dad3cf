// Package allowlist keeps the set of token ids (jti) that are currently valid.
//
// A token is accepted only while its jti is present and unexpired in the list it
// was issued into. Removal is how tokens are revoked. Two implementations are
// provided: [MemoryStore] for single-process deployments and [RedisStore] for
// shared deployments, where expiry is delegated to Redis.
//
// Stores only know about opaque ids. They never decode tokens or make
// authorization decisions.
package allowlist
