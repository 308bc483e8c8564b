package authn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints HS256 session tokens carrying the login and device
// claims the registry middleware expects. Token refresh and revocation-on-
// expiry live in the session authentication guard, not here.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
}

// NewTokenIssuer creates a token issuer with the given HMAC secret.
func NewTokenIssuer(secret, issuer, audience string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// IssueSessionToken creates a signed token binding the login to the device.
func (i *TokenIssuer) IssueSessionToken(loginID uuid.UUID, deviceID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":         i.issuer,
		"aud":         i.audience,
		"iat":         now.Unix(),
		"exp":         now.Add(i.expiry).Unix(),
		"jti":         uuid.New().String(),
		ClaimLoginID:  loginID.String(),
		ClaimDeviceID: deviceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}
