package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/roea-ai/botmind/internal/api/handlers"
	"github.com/roea-ai/botmind/pkg/types"
)

// PrincipalHeader names the caller when token auth is disabled.
const PrincipalHeader = "X-Principal"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type principal struct {
	name string
	hash []byte
}

// Auth issues and checks principal bearer tokens.
type Auth struct {
	enabled    bool
	secret     []byte
	ttl        time.Duration
	principals map[string]principal
	now        func() time.Time
}

// NewAuth builds an Auth from config. Enabled auth needs a secret.
func NewAuth(cfg types.AuthConfig) (*Auth, error) {
	a := &Auth{
		enabled:    cfg.Enabled,
		secret:     []byte(cfg.JWTSecret),
		ttl:        time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		principals: make(map[string]principal),
		now:        time.Now,
	}
	if a.ttl <= 0 {
		a.ttl = 24 * time.Hour
	}
	if a.enabled && len(a.secret) == 0 {
		return nil, fmt.Errorf("auth enabled without jwt_secret")
	}
	for name, hash := range cfg.Principals {
		a.principals[cases.Fold().String(name)] = principal{name: name, hash: []byte(hash)}
	}
	return a, nil
}

// Enabled reports whether bearer tokens are required.
func (a *Auth) Enabled() bool {
	return a.enabled
}

// HashPassword returns the bcrypt hash stored in auth.principals.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IssueToken checks a principal's password and signs a token for it.
func (a *Auth) IssueToken(name, password string) (string, time.Time, error) {
	p, ok := a.principals[cases.Fold().String(name)]
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Sign(p.name)
}

// Sign issues a token for name without a password check.
func (a *Auth) Sign(name string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   name,
		Issuer:    "botmind",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify returns the principal a token was issued to.
func (a *Auth) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("botmind"),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware sets the request principal. With auth enabled it comes from
// the bearer token (or ?token= for websocket clients); otherwise from the
// X-Principal header. Requests without credentials continue anonymously.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.enabled {
			if p := strings.TrimSpace(c.GetHeader(PrincipalHeader)); p != "" {
				c.Set(handlers.PrincipalKey, p)
			}
			c.Next()
			return
		}

		token := c.Query("token")
		if h := c.GetHeader("Authorization"); h != "" {
			scheme, rest, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
				return
			}
			token = strings.TrimSpace(rest)
		}
		if token == "" {
			c.Next()
			return
		}

		name, err := a.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(handlers.PrincipalKey, name)
		c.Next()
	}
}

func (a *Auth) handleToken(c *gin.Context) {
	if !a.enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "token auth disabled"})
		return
	}
	var req struct {
		Principal string `json:"principal" binding:"required"`
		Password  string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expires, err := a.IssueToken(req.Principal, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}
