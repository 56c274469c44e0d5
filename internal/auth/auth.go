// Package auth verifies the credentials presented by a connecting
// client. Token issuance (JWT, bcrypt, account management) lives
// outside the core server; this package only consumes tokens.
package auth

//go:generate mockgen -destination=mock/mock_verifier.go -package=mockauth -source=auth.go

// TokenVerifier resolves an access token to the user id it was issued
// for. Deployments wire their JWT verifier here; tests and local runs
// use the static verifier.
type TokenVerifier interface {
	VerifyAccessToken(token string) (string, error)
}
