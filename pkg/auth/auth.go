package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// TokenTTL is the lifetime of every issued token.
const TokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	Secret     string `envconfig:"JWT_SECRET" required:"true"`
	BcryptCost int    `envconfig:"BCRYPT_COST" default:"10"`
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	ID    int64  `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email"`
}

type Claims struct {
	UserID int64  `json:"id"`
	Role   Role   `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Credentials struct {
	secret []byte
	cost   int
	now    func() time.Time
}

func NewCredentials(cfg Config) *Credentials {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{
		secret: []byte(cfg.Secret),
		cost:   cost,
		now:    time.Now,
	}
}

func (c *Credentials) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt.GenerateFromPassword")
	}
	return string(hash), nil
}

func (c *Credentials) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (c *Credentials) IssueToken(id Identity) (string, error) {
	now := c.now()
	claims := &Claims{
		UserID: id.ID,
		Role:   id.Role,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "token.SignedString")
	}
	return signed, nil
}

// VerifyToken reports every failure (bad signature, expiry, garbage) as ErrInvalidToken.
func (c *Credentials) VerifyToken(tokenStr string) (Identity, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: claims.UserID, Role: claims.Role, Email: claims.Email}, nil
}

type identityKey struct{}

func SetIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
