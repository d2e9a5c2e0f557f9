package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, tampered with, or signed with the wrong key.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when a token's signature is valid but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims holds JWT claims for the short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role           string `json:"role"`
	IdentifierType string `json:"identifier_type"`
	Identifier     string `json:"identifier"`
}

// RefreshClaims holds JWT claims for the refresh token. The jti carries the
// session id; the token itself holds no state beyond that lookup key.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates JWT access and refresh tokens.
// It signs with an HMAC secret (HS256) or a private key (RS256/ES256).
type TokenProvider struct {
	secret     []byte
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 using secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewKeypairTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on verification.
func NewKeypairTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given user.
// identifierType and identifier record which channel the user authenticated with.
func (p *TokenProvider) IssueAccess(userID, role, identifierType, identifier string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:           role,
		IdentifierType: identifierType,
		Identifier:     identifier,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT whose jti is the session id.
func (p *TokenProvider) IssueRefresh(sessionID, userID string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	if p.secret != nil {
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrTokenInvalid
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if p.secret != nil {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			return p.secret, nil
		}
		return nil, ErrTokenInvalid
	}
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrTokenInvalid
}

// VerifyAccess parses and validates an access token (signature, exp, iss, aud).
// Expired tokens return ErrTokenExpired; everything else invalid returns ErrTokenInvalid.
func (p *TokenProvider) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return nil, p.mapParseError(err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token (signature, exp, iss, aud).
// It performs no revocation check; the jti is only a session lookup key.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return nil, p.mapParseError(err)
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (p *TokenProvider) mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func (p *TokenProvider) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != p.issuer {
		return ErrTokenInvalid
	}
	for _, a := range audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrTokenInvalid
}

const defaultTokenTTL = 5 * time.Minute

// ParseTokenTTL parses a token lifetime string of the form "<int>m" (minutes)
// or "<int>s" (seconds). Absent or malformed values fall back to 5 minutes.
func ParseTokenTTL(s string) time.Duration {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return defaultTokenTTL
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return defaultTokenTTL
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute
	case 's':
		return time.Duration(n) * time.Second
	default:
		return defaultTokenTTL
	}
}
