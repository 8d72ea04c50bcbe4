package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"preference_server/pkg/apperr"
	"preference_server/pkg/logger"
)

// JWTAuth validates HS256 bearer tokens and stores the subject as user_id.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims, err := parseToken(tokenString, secret)
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			return apperr.InvalidToken("invalid token")
		}

		userID, err := claims.GetSubject()
		if err != nil || userID == "" {
			return apperr.InvalidToken("missing user id in token")
		}

		c.Locals("user_id", userID)
		if email, ok := claims["email"].(string); ok {
			c.Locals("user_email", email)
		}
		c.SetUserContext(context.WithValue(c.UserContext(), logger.UserIDKey, userID))
		return c.Next()
	}
}

// RequireSelf rejects requests whose :userId differs from the token subject.
// Requests carrying a valid admin API key may act on any user.
func RequireSelf(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if admin, _ := c.Locals("admin").(bool); admin {
			return c.Next()
		}
		userID, _ := c.Locals("user_id").(string)
		if userID == "" || userID != c.Params(param) {
			return apperr.Forbidden("cannot access another user's preferences")
		}
		return c.Next()
	}
}

// APIKey requires the X-API-Key header to match key. An empty key disables
// the routes entirely.
func APIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return apperr.ServiceUnavailable("admin api", nil)
		}
		got := c.Get("X-API-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return apperr.Unauthorized("invalid api key")
		}
		c.Locals("admin", true)
		return c.Next()
	}
}

// UserOrAPIKey accepts either a valid admin key or a valid bearer token.
func UserOrAPIKey(secret, key string) fiber.Handler {
	jwtAuth := JWTAuth(secret)
	return func(c *fiber.Ctx) error {
		if got := c.Get("X-API-Key"); got != "" && key != "" &&
			subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1 {
			c.Locals("admin", true)
			return c.Next()
		}
		return jwtAuth(c)
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseToken(tokenString, secret string) (jwt.MapClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(jwtLeeway), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	return claims, nil
}
