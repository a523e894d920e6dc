package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentialFormat is returned when a credential cannot be decoded locally.
var ErrInvalidCredentialFormat = errors.New("invalid credential format")

// Claims describes the credential payload issued by the storefront API.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// CredentialInfo is the locally readable part of a credential.
type CredentialInfo struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var unverifiedParser = jwt.NewParser()

// Decode reads the payload segment of a credential without checking its signature.
// Authenticity is the server's responsibility; the client only needs the timestamps.
func Decode(credential string) (*CredentialInfo, error) {
	claims := &Claims{}
	if _, _, err := unverifiedParser.ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialFormat, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidCredentialFormat)
	}

	info := &CredentialInfo{
		SubjectID: claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if info.SubjectID == "" {
		info.SubjectID = claims.Subject
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	return info, nil
}

// IsExpired reports whether the credential is unusable at now: undecodable or exp <= now.
func IsExpired(credential string, now time.Time) bool {
	info, err := Decode(credential)
	if err != nil {
		return true
	}
	return !info.ExpiresAt.After(now)
}

// TokenIssuer signs HS256 credentials. Only the development API and tests mint credentials.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds a new issuer.
func NewTokenIssuer(secret string, ttlMinutes int) *TokenIssuer {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenIssuer{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// WithClock overrides the issuer's time source.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// Issue signs a credential for the subject valid for the configured TTL.
func (ti *TokenIssuer) Issue(subjectID string) (string, time.Time, error) {
	return ti.IssueWithExpiry(subjectID, ti.now().Add(ti.ttl))
}

// IssueWithExpiry signs a credential with an explicit expiry.
func (ti *TokenIssuer) IssueWithExpiry(subjectID string, expiresAt time.Time) (string, time.Time, error) {
	claims := &Claims{
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(ti.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates the signature and expiry and returns the claims.
func (ti *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
