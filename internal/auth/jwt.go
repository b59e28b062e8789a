// ABOUTME: HS256 token issuance and parsing for the access/refresh pair.
// ABOUTME: Both parse paths pin the algorithm and require exp — never call jwt.Parse directly.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// parseOpts are mandatory on every parse path. Pinning HS256 closes the
// alg-confusion forgery class; requiring exp closes the eternal-token one.
var parseOpts = []jwt.ParserOption{
	jwt.WithValidMethods([]string{"HS256"}),
	jwt.WithExpirationRequired(),
}

// signHS256 signs claims with the shared secret.
func signHS256(secret []byte, claims jwt.Claims, kind string) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	// UserID deliberately reuses the json:"sub" tag: the outer field wins the
	// embedded-tag collision, so "sub" round-trips as a uuid.UUID instead of the
	// RegisteredClaims string.
	UserID uuid.UUID `json:"sub"`
	// TokenVersion is compared against users.token_version; bumping the column
	// invalidates every outstanding token for the user.
	TokenVersion int `json:"tv"`
}

// IssueAccessToken signs an access token. ttl should stay short; anything
// longer-lived belongs on the refresh path.
func IssueAccessToken(secret []byte, userID uuid.UUID, tokenVersion int, ttl time.Duration) (string, error) {
	now := time.Now()
	return signHS256(secret, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:       userID,
		TokenVersion: tokenVersion,
	}, "access")
}

// ParseAccessToken validates signature, algorithm, and expiry, returning the claims.
func ParseAccessToken(tokenStr string, secret []byte) (*AccessClaims, error) {
	claims := &AccessClaims{}
	keyFn := func(_ *jwt.Token) (any, error) { return secret, nil }
	if _, err := jwt.ParseWithClaims(tokenStr, claims, keyFn, parseOpts...); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// RefreshClaims is the payload of a refresh token. Each refresh token is
// single-use: its JTI is recorded server-side and burned on rotation.
type RefreshClaims struct {
	jwt.RegisteredClaims
	// UserID shadows "sub" the same way AccessClaims.UserID does.
	UserID uuid.UUID `json:"sub"`
	// TokenVersion mismatch against users.token_version means logout-all fired.
	TokenVersion int `json:"tv"`
	// JTI is the typed twin of the standard string "jti" claim carried in
	// RegisteredClaims.ID; both hold the same UUID.
	JTI uuid.UUID `json:"jti_id"`
}

// IssueRefreshToken signs a refresh token carrying the given JTI.
func IssueRefreshToken(secret []byte, userID uuid.UUID, tokenVersion int, jti uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	return signHS256(secret, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:       userID,
		TokenVersion: tokenVersion,
		JTI:          jti,
	}, "refresh")
}

// ParseRefreshToken validates signature, algorithm, and expiry, returning the claims.
func ParseRefreshToken(tokenStr string, secret []byte) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	keyFn := func(_ *jwt.Token) (any, error) { return secret, nil }
	if _, err := jwt.ParseWithClaims(tokenStr, claims, keyFn, parseOpts...); err != nil {
		return nil, fmt.Errorf("parse refresh token: %w", err)
	}
	return claims, nil
}
