package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/helicon-labs/researchd/config"
)

var (
	// ErrInvalidCredentials is returned for any username/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers every verification failure: malformed token, bad
	// signature, wrong algorithm, expired. Callers must not distinguish them.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the single configured user the gate authenticates against.
type Identity struct {
	Username     string
	Password     string // plaintext compare path (login form)
	PasswordHash string // bcrypt; preferred when set
}

// Gate issues and verifies signed, time-boxed credentials. It keeps no
// server-side session state; the token is the only session artifact.
type Gate struct {
	identity Identity
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewGate builds a gate from config. TokenTTL defaults to 24h.
func NewGate(cfg config.AuthConfig) *Gate {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{
		identity: Identity{
			Username:     cfg.Username,
			Password:     cfg.Password,
			PasswordHash: cfg.PasswordHash,
		},
		secret: []byte(cfg.SecretKey),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the gate's clock. Tests use it to simulate expiry.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// IssueToken validates the submitted credentials against the configured
// identity and returns a signed HS256 token carrying the subject, issue time
// and expiry.
func (g *Gate) IssueToken(username, password string) (string, error) {
	if !g.authenticate(username, password) {
		return "", ErrInvalidCredentials
	}
	now := g.now()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(g.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (g *Gate) authenticate(username, password string) bool {
	if g.identity.Username == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(g.identity.Username)) != 1 {
		return false
	}
	if g.identity.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.identity.PasswordHash), []byte(password)) == nil
	}
	// a gate with no configured credential never opens
	if g.identity.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.identity.Password)) == 1
}

// VerifyToken checks signature, algorithm and expiry and returns the subject.
// Every failure mode collapses into ErrInvalidToken.
func (g *Gate) VerifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// Middleware returns an Echo middleware that validates the caller's token
// from the Authorization header or a token query parameter, rejecting with
// 401 before any other work happens.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			sub, err := g.VerifyToken(tok)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set("subject", sub)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return c.QueryParam("token")
}
