package flows

// FailureKind classifies flow failures for root-level mapping. The String form
// is the reason code written to logs and audit metadata.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidToken
	FailureWrongTokenType
	FailureRevoked
	FailureStoreUnavailable
	FailureInvalidPayload
	FailureIdentityNotFound
	FailureInactiveIdentity
	FailureForbidden
	FailureInvalidCredentials
	FailureReuse
	FailureIssue
	FailureInvalidResetToken
	FailureUpdateSecret
)

var failureCodes = [...]string{
	FailureNone:               "",
	FailureInvalidToken:       "invalid_token",
	FailureWrongTokenType:     "wrong_token_type",
	FailureRevoked:            "revoked_or_unknown",
	FailureStoreUnavailable:   "store_unavailable",
	FailureInvalidPayload:     "invalid_payload",
	FailureIdentityNotFound:   "identity_not_found",
	FailureInactiveIdentity:   "inactive_identity",
	FailureForbidden:          "forbidden_role",
	FailureInvalidCredentials: "invalid_credentials",
	FailureReuse:              "refresh_reuse",
	FailureIssue:              "issue_failed",
	FailureInvalidResetToken:  "invalid_reset_token",
	FailureUpdateSecret:       "update_secret_failed",
}

func (k FailureKind) String() string {
	if k < 0 || int(k) >= len(failureCodes) {
		return "unknown"
	}
	return failureCodes[k]
}
