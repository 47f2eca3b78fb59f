package api

import (
	"crypto/subtle"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	subscribeMode                = "subscribe"
	TextCodeVerificationMismatch = "VERIFICATION_MISMATCH"
)

// CheckSubscription accepts the handshake iff mode is "subscribe" and token
// matches the configured secret exactly. An empty secret matches nothing.
func CheckSubscription(mode, token, secret string) error {
	tokenMatch := tokenMatches(token, secret)
	if mode == subscribeMode && tokenMatch {
		return nil
	}
	return goerrors.New("webhook verification failed", goerrors.CategoryAuth).
		WithCode(http.StatusForbidden).
		WithTextCode(TextCodeVerificationMismatch).
		WithMetadata(map[string]any{
			"mode":        mode,
			"token_match": tokenMatch,
		})
}

func tokenMatches(token, secret string) bool {
	return secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
