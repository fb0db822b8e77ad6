package domain

// OAuth provider error codes the callback may carry. Any other error value is
// treated as a malformed callback and rejected.
const (
	OAuthErrAccessDenied           = "access_denied"
	OAuthErrInvalidRequest         = "invalid_request"
	OAuthErrServerError            = "server_error"
	OAuthErrTemporarilyUnavailable = "temporarily_unavailable"
)

// knownOAuthErrors is the fixed set of provider error codes the callback accepts.
var knownOAuthErrors = map[string]bool{
	OAuthErrAccessDenied:           true,
	OAuthErrInvalidRequest:         true,
	OAuthErrServerError:            true,
	OAuthErrTemporarilyUnavailable: true,
}

// IsKnownOAuthError reports whether code is one of the provider error codes
// the callback contract allows.
func IsKnownOAuthError(code string) bool {
	return knownOAuthErrors[code]
}
