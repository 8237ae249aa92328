// Package tokencodec issues and parses the JWT access/refresh tokens
// consumed by Identity, as a standalone collaborator so both token kinds
// share one signing path.
package tokencodec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// Codec issues and parses access/refresh tokens.
type Codec struct {
	secret            []byte
	issuer            string
	accessExpiry      time.Duration
	refreshExpiry     time.Duration
}

// NewCodec constructs a Codec.
func NewCodec(secret, issuer string, accessExpiry, refreshExpiry time.Duration) *Codec {
	return &Codec{secret: []byte(secret), issuer: issuer, accessExpiry: accessExpiry, refreshExpiry: refreshExpiry}
}

// IssueAccess mints a short-lived access token carrying sub and type=access.
func (c *Codec) IssueAccess(user *models.User) (token string, expiresAt time.Time, err error) {
	return c.issue(user, models.TokenTypeAccess, c.accessExpiry)
}

// IssueRefresh mints a long-lived refresh token carrying sub and type=refresh.
func (c *Codec) IssueRefresh(user *models.User) (token string, expiresAt time.Time, err error) {
	return c.issue(user, models.TokenTypeRefresh, c.refreshExpiry)
}

func (c *Codec) issue(user *models.User, tokenType string, ttl time.Duration) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &models.JWTClaims{
		UserID:   fmt.Sprintf("%d", user.ID),
		Type:     tokenType,
		Role:     user.Role,
		SchoolID: user.SchoolID,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates signature and expiry and returns the claims. It does not
// re-validate the user against the store; callers must do that before
// trusting the claims' role or school_id for any authorization decision.
func (c *Codec) Parse(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// AccessTTLSeconds reports the configured access token lifetime in seconds.
func (c *Codec) AccessTTLSeconds() int64 {
	return int64(c.accessExpiry.Seconds())
}
