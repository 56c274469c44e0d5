package auth

import (
	"strings"

	dserr "github.com/undercroft/undercroft/internal/errors"
)

// StaticVerifier maps fixed tokens to user ids. It backs local runs
// and tests; production wires a real JWT verifier instead.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier parses a "token:user,token:user" spec, the shape
// the AUTH_TOKENS env var carries. Malformed pairs are skipped.
func NewStaticVerifier(spec string) *StaticVerifier {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		tokens[parts[0]] = parts[1]
	}
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) VerifyAccessToken(token string) (string, error) {
	if token == "" {
		return "", dserr.Unauthenticated("missing access token")
	}
	userID, ok := v.tokens[token]
	if !ok {
		return "", dserr.Unauthenticated("invalid access token")
	}
	return userID, nil
}
