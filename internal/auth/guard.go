package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	bearerPrefix     = "Bearer "
	tokenLocalsKey   = "token"
	subjectLocalsKey = "subject"
)

var ErrNoToken = errors.New("no token provided")

// Guard rejects requests that do not carry a valid "Authorization: Bearer"
// token and stores the token subject for SubjectFromCtx. It does not check
// that the subject owns the resource being accessed.
func Guard(tokens *TokenService) fiber.Handler {
	verify := jwtware.New(jwtware.Config{
		SigningKey:     tokens.secret,
		SigningMethod:  jwt.SigningMethodHS256.Alg(),
		Claims:         &Claims{},
		ContextKey:     tokenLocalsKey,
		TokenLookup:    "header:" + fiber.HeaderAuthorization,
		AuthScheme:     strings.TrimSpace(bearerPrefix),
		SuccessHandler: admit,
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return deny(c, ErrInvalidToken)
		},
	})

	return func(c *fiber.Ctx) error {
		if !hasBearerToken(c.Get(fiber.HeaderAuthorization)) {
			return deny(c, ErrNoToken)
		}
		return verify(c)
	}
}

// SubjectFromCtx returns the user id the guard admitted the request for.
func SubjectFromCtx(c *fiber.Ctx) (string, error) {
	subject, ok := c.Locals(subjectLocalsKey).(string)
	if !ok || subject == "" {
		return "", ErrNoToken
	}
	return subject, nil
}

func admit(c *fiber.Ctx) error {
	token, ok := c.Locals(tokenLocalsKey).(*jwt.Token)
	if !ok {
		return deny(c, ErrInvalidToken)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return deny(c, ErrInvalidToken)
	}

	c.Locals(subjectLocalsKey, claims.Subject)
	return c.Next()
}

func deny(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func hasBearerToken(header string) bool {
	return strings.HasPrefix(header, bearerPrefix) && strings.TrimSpace(header[len(bearerPrefix):]) != ""
}
