// Package reset stores single-use password-reset tokens.
//
// A token maps to exactly one user id until it is consumed or expires. Consume
// is atomic: of any number of concurrent callers presenting the same token, only
// one receives the user id.
package reset
