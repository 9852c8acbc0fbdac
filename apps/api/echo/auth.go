package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "

	// roles
	RoleAdmin = "admin"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	SchoolID string   `json:"schoolId,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (c Claims) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		for _, have := range c.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// NewClaims returns claims for subject valid for ttl.
func NewClaims(subject, schoolID string, ttl time.Duration, roles ...string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SchoolID: schoolID,
		Roles:    roles,
	}
}

// GenerateToken generates a signed HS256 token string representing the Claims.
func GenerateToken(claims *Claims, key []byte) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	return ss, errors.Wrap(err, "signing token")
}

// jwtMiddleware verifies the bearer token and stores its claims in the context.
func jwtMiddleware(key []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (interface{}, error) { return key, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) {
				return errUnauthorized
			}

			claims := new(Claims)
			if _, err := parser.ParseWithClaims(strings.TrimPrefix(auth, bearerPrefix), claims, keyFunc); err != nil {
				return errUnauthorized.WithInternal(err)
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

// roleMiddleware lets through the users holding any of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
