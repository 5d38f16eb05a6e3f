package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrNoToken     = errors.New("no auth token")
)

// ParseRole accepts both plain roles and the backend's ROLE_ form ("ROLE_PATIENT").
func ParseRole(s string) (Role, error) {
	r := strings.ToLower(strings.TrimSpace(s))
	r = strings.TrimPrefix(r, "role_")
	switch Role(r) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(r), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Context is what the controllers know about the signed in user. It is passed by
// construction, never read from ambient storage.
type Context struct {
	Role      Role
	UserID    string
	Name      string
	Token     string
	ExpiresAt time.Time
}

func New(role Role, name string) Context {
	return Context{Role: role, Name: name}
}

// Expired reports whether the token has an expiry that lies before now.
func (c Context) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// FromToken reads the session claims out of a bearer token. The signature is not
// checked here; the backend verifies every request.
func FromToken(token string) (Context, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Context{}, ErrNoToken
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Context{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Context{}, errors.New("parse token: unexpected claims type")
	}

	rawRole, _ := claims["role"].(string)
	role, err := ParseRole(rawRole)
	if err != nil {
		return Context{}, err
	}

	ctx := Context{
		Role:  role,
		Token: token,
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		ctx.UserID = sub
	}
	if uid, ok := claims["userId"].(string); ok && uid != "" {
		ctx.UserID = uid
	}
	if name, ok := claims["name"].(string); ok {
		ctx.Name = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ctx.ExpiresAt = exp.Time
	}
	return ctx, nil
}
