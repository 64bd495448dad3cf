// Package userdir is an in-process user directory for goSession engines.
//
// It stores users in memory, hashes secrets with the password package and
// upgrades legacy or weak hashes on successful login. It suits tests, demos
// and single-process deployments; production systems normally back
// goSession.UserDirectory with their own database.
package userdir
