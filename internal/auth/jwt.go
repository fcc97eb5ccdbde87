package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusmarket/internal/model"
)

// Kind marks what a token may be used for. The marker is embedded in the
// payload and must match the operation consuming the token.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// StepSecurityQuestion is the scope marker a step token must carry to satisfy
// step 2 of the admin login. A token without it never passes by default.
const StepSecurityQuestion = "security_question"

// ErrInvalidToken covers every decode failure: bad signature, expiry, kind
// mismatch, missing payload fields, unknown role.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed token payload. Access and step tokens carry the full
// identity; refresh tokens carry the user id only.
type Claims struct {
	UserID    int64      `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Email     string     `json:"email,omitempty"`
	Role      model.Role `json:"role,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	Step      string     `json:"step,omitempty"`
	TokenType string     `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a process-wide secret. The clock is a
// field so expiry behavior is testable.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	return &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// Encode stamps the claims with the kind marker, issued-at and expiry, then
// signs them.
func (c *Codec) Encode(claims Claims, kind Kind, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims.TokenType = string(kind)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies signature and expiry and requires the token kind to equal
// expected. Access tokens must carry a complete identity payload with a known
// role; callers never see partially populated claims.
func (c *Codec) Decode(tokenString string, expected Kind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != string(expected) {
		return nil, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}

	switch expected {
	case KindAccess:
		if claims.UserID == 0 || claims.Username == "" || claims.Email == "" {
			return nil, fmt.Errorf("%w: incomplete payload", ErrInvalidToken)
		}
		if !claims.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
		}
	case KindRefresh:
		if claims.UserID == 0 {
			return nil, fmt.Errorf("%w: incomplete payload", ErrInvalidToken)
		}
	}

	return claims, nil
}
