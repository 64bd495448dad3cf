// Package password hashes and verifies user secrets for directory
// implementations.
//
// [Argon2] is the default and writes PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Bcrypt] reads and writes $2a$/$2b$ hashes. [Chain] verifies whichever
// format a record holds and reports through NeedsUpgrade when it should be
// rehashed with the primary.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goSession package.
package password
