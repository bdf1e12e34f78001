package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zombor/campusfind/internal/item"
)

// Role is the kind of account a session was opened as
type Role string

const (
	RoleStudent Role = "student"
	RoleCollege Role = "college"
)

// TokenExpiry is the session lifetime
const TokenExpiry = 7 * 24 * time.Hour

var (
	ErrInvalidRole    = errors.New("role must be student or college")
	ErrMissingCollege = errors.New("college code is required")
	ErrMissingName    = errors.New("name is required")
	ErrInvalidToken   = errors.New("invalid session token")
)

// Identity is the unvalidated identity a user claims at login
type Identity struct {
	UserID    string `json:"userId"`
	CollegeID string `json:"collegeId"`
	Role      Role   `json:"role"`
}

// NewIdentity builds an identity from the login form. College accounts act
// as "<CODE> Admin".
func NewIdentity(role Role, collegeCode, name string) (Identity, error) {
	college := strings.ToUpper(strings.TrimSpace(collegeCode))
	if college == "" {
		return Identity{}, ErrMissingCollege
	}

	switch role {
	case RoleStudent:
		name = strings.TrimSpace(name)
		if name == "" {
			return Identity{}, ErrMissingName
		}
		return Identity{UserID: name, CollegeID: college, Role: RoleStudent}, nil
	case RoleCollege:
		return Identity{UserID: college + " Admin", CollegeID: college, Role: RoleCollege}, nil
	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

// Actor returns the identity as seen by the item service
func (i Identity) Actor() item.Actor {
	return item.Actor{
		UserID:    i.UserID,
		CollegeID: i.CollegeID,
		Admin:     i.Role == RoleCollege,
	}
}

// Claims are the JWT claims of a session token
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// Session is a validated token
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
}

// Issuer signs and validates session tokens
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer. An empty secret is replaced by a random one,
// which invalidates sessions on restart.
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue creates a signed token for identity
func (s *Issuer) Issue(identity Identity) (string, *Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		ExpiresAt: now.Add(TokenExpiry),
	}

	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, sess, nil
}

// Validate parses a token and returns its session
func (s *Issuer) Validate(tokenStr string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" || claims.CollegeID == "" {
		return nil, ErrInvalidToken
	}

	return &Session{
		ID:        claims.ID,
		Identity:  claims.Identity,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
