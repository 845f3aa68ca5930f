package gardenapi

import (
	"strings"

	"github.com/Abraxas-365/verdant/pkg/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenMiddleware validates bearer tokens on state-changing routes. Reads
// stay open; only the refresh endpoints go through Authenticate.
type TokenMiddleware struct {
	secret []byte
}

// NewTokenMiddleware creates a middleware validating HS256 tokens signed
// with secret. An empty secret disables authentication, which is the
// development default.
func NewTokenMiddleware(secret string) *TokenMiddleware {
	return &TokenMiddleware{secret: []byte(secret)}
}

// Authenticate validates the Authorization bearer token.
func (m *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(m.secret) == 0 {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return unauthorized(c, errx.Unauthorized("missing bearer token"))
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errx.Unauthorized("unexpected signing method")
			}
			return m.secret, nil
		})
		if err != nil {
			return unauthorized(c, errx.Wrap(err, "invalid token", errx.TypeAuthorization))
		}
		if !token.Valid {
			return unauthorized(c, errx.Unauthorized("invalid token"))
		}

		if sub, err := token.Claims.GetSubject(); err == nil {
			c.Locals("subject", sub)
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, err *errx.Error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(err.ToHTTPResponse())
}
