// Package jwt issues and verifies the signed access and refresh tokens handed to
// clients. Tokens are compact JWS strings; every token carries a unique jti that the
// allow-list stores key on.
package jwt
