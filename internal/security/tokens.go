package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tenant-access-control/internal/platform/apperr"
)

// Subject is the fixed sub claim carried by every token this package issues.
const Subject = "access"

// DefaultTTL is the token lifetime used when the caller passes a zero TTL.
const DefaultTTL = 30 * time.Minute

var (
	// ErrInvalidToken is returned (wrapped in apperr.ErrToken) when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrKindMismatch is returned when a token decodes but carries a different claim kind.
	ErrKindMismatch = errors.New("token kind mismatch")
	// ErrEmptySecret is returned when issuing or verifying with an empty signing secret.
	ErrEmptySecret = errors.New("empty signing secret")
)

// Kind discriminates the claim sets a token can carry.
type Kind string

const (
	KindIdentity          Kind = "identity"
	KindEmailVerification Kind = "email_verification"
	KindOrgInvite         Kind = "org_invite"
	KindWebsiteInvite     Kind = "website_invite"
)

// Claims is implemented by the four claim kinds.
type Claims interface {
	Kind() Kind
	complete() bool
}

// IdentityClaims identify an authenticated user.
type IdentityClaims struct {
	ID       string
	Username string
	Email    string
}

// EmailVerificationClaims prove ownership of an email address.
type EmailVerificationClaims struct {
	Email string
}

// OrgInviteClaims bind an invited email to an organization.
type OrgInviteClaims struct {
	OrganizationID string
	Email          string
}

// WebsiteInviteClaims bind an invited email to a website.
type WebsiteInviteClaims struct {
	WebsiteID string
	Email     string
}

func (IdentityClaims) Kind() Kind          { return KindIdentity }
func (EmailVerificationClaims) Kind() Kind { return KindEmailVerification }
func (OrgInviteClaims) Kind() Kind         { return KindOrgInvite }
func (WebsiteInviteClaims) Kind() Kind     { return KindWebsiteInvite }

func (c IdentityClaims) complete() bool          { return c.ID != "" && c.Username != "" && c.Email != "" }
func (c EmailVerificationClaims) complete() bool { return c.Email != "" }
func (c OrgInviteClaims) complete() bool         { return c.OrganizationID != "" && c.Email != "" }
func (c WebsiteInviteClaims) complete() bool     { return c.WebsiteID != "" && c.Email != "" }

// payload is the JWT body. Only the fields of the carried kind are set.
type payload struct {
	jwt.RegisteredClaims
	TokenKind      Kind   `json:"kind"`
	UserID         string `json:"id,omitempty"`
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	WebsiteID      string `json:"website_id,omitempty"`
}

// Issue signs claims with secret using HS256. The token expires ttl from now;
// a zero ttl means DefaultTTL and a negative ttl yields an already expired token.
func Issue(claims Claims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if claims == nil || !claims.complete() {
		return "", fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	p := payload{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenKind: claims.Kind(),
	}
	switch c := claims.(type) {
	case IdentityClaims:
		p.UserID, p.Username, p.Email = c.ID, c.Username, c.Email
	case EmailVerificationClaims:
		p.Email = c.Email
	case OrgInviteClaims:
		p.OrganizationID, p.Email = c.OrganizationID, c.Email
	case WebsiteInviteClaims:
		p.WebsiteID, p.Email = c.WebsiteID, c.Email
	default:
		return "", fmt.Errorf("%w: unsupported claims %T", ErrInvalidToken, claims)
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, p)
	return t.SignedString([]byte(secret))
}

// Verify checks the signature, algorithm, subject and expiry of token and
// returns its claims if they are of the expected kind. Every failure matches
// apperr.ErrToken.
func Verify(token, secret string, kind Kind) (Claims, error) {
	if secret == "" {
		return nil, apperr.Token(ErrEmptySecret)
	}
	var p payload
	parsed, err := jwt.ParseWithClaims(token, &p, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(Subject),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperr.Token(err)
	}
	if !parsed.Valid {
		return nil, apperr.Token(ErrInvalidToken)
	}
	// Parser already rejects expired tokens; this keeps expiry explicit.
	if p.ExpiresAt == nil || !time.Now().Before(p.ExpiresAt.Time) {
		return nil, apperr.Token(jwt.ErrTokenExpired)
	}
	if p.TokenKind != kind {
		return nil, apperr.Token(ErrKindMismatch)
	}
	claims := p.claims()
	if claims == nil || !claims.complete() {
		return nil, apperr.Token(ErrKindMismatch)
	}
	return claims, nil
}

func (p *payload) claims() Claims {
	switch p.TokenKind {
	case KindIdentity:
		return IdentityClaims{ID: p.UserID, Username: p.Username, Email: p.Email}
	case KindEmailVerification:
		return EmailVerificationClaims{Email: p.Email}
	case KindOrgInvite:
		return OrgInviteClaims{OrganizationID: p.OrganizationID, Email: p.Email}
	case KindWebsiteInvite:
		return WebsiteInviteClaims{WebsiteID: p.WebsiteID, Email: p.Email}
	}
	return nil
}

// Codec binds Issue and Verify to the configured secret and TTL.
type Codec struct {
	secret string
	ttl    time.Duration
}

// NewCodec returns a Codec signing with secret. A zero ttl means DefaultTTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl}
}

// TTL returns the lifetime of tokens issued by c.
func (c *Codec) TTL() time.Duration {
	if c.ttl == 0 {
		return DefaultTTL
	}
	return c.ttl
}

// Issue signs claims with the codec's secret and TTL.
func (c *Codec) Issue(claims Claims) (string, error) {
	return Issue(claims, c.secret, c.ttl)
}

// Verify verifies token against the codec's secret.
func (c *Codec) Verify(token string, kind Kind) (Claims, error) {
	return Verify(token, c.secret, kind)
}

// IssueIdentity issues an identity token for the given user.
func (c *Codec) IssueIdentity(id, username, email string) (string, error) {
	return c.Issue(IdentityClaims{ID: id, Username: username, Email: email})
}

// VerifyIdentity verifies an identity token.
func (c *Codec) VerifyIdentity(token string) (IdentityClaims, error) {
	claims, err := c.Verify(token, KindIdentity)
	if err != nil {
		return IdentityClaims{}, err
	}
	return claims.(IdentityClaims), nil
}

// VerifyEmailVerification verifies an email verification token.
func (c *Codec) VerifyEmailVerification(token string) (EmailVerificationClaims, error) {
	claims, err := c.Verify(token, KindEmailVerification)
	if err != nil {
		return EmailVerificationClaims{}, err
	}
	return claims.(EmailVerificationClaims), nil
}

// VerifyOrgInvite verifies an organization invite token.
func (c *Codec) VerifyOrgInvite(token string) (OrgInviteClaims, error) {
	claims, err := c.Verify(token, KindOrgInvite)
	if err != nil {
		return OrgInviteClaims{}, err
	}
	return claims.(OrgInviteClaims), nil
}

// VerifyWebsiteInvite verifies a website invite token.
func (c *Codec) VerifyWebsiteInvite(token string) (WebsiteInviteClaims, error) {
	claims, err := c.Verify(token, KindWebsiteInvite)
	if err != nil {
		return WebsiteInviteClaims{}, err
	}
	return claims.(WebsiteInviteClaims), nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
