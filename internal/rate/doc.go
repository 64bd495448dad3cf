// Package rate implements a Redis fixed-window limiter for failed logins.
//
// A failure INCRs "<prefix>:id:<identifier>" (and "<prefix>:ip:<addr>" when
// PerIP is set) and sets the window TTL on the first hit. Check refuses once a
// counter reaches MaxAttempts; Reset clears both after a successful login.
package rate
