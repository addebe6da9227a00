package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsLocalKey holds the verified token claims in Fiber's context locals.
const ClaimsLocalKey = "claims"

// RequireRole guards a route group with an HS256 bearer token whose "role"
// claim must equal role. Failures are returned as *fiber.Error so the
// global error handler renders them:
// - no bearer token: 401
// - invalid or expired token: 401
// - wrong role: 403
func RequireRole(secret, role string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Access denied, no token provided")
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			LogEntry(c).WithError(err).Debug("bearer token rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		if got, _ := claims["role"].(string); got != role {
			return fiber.NewError(fiber.StatusForbidden, "Access denied, insufficient role")
		}

		c.Locals(ClaimsLocalKey, claims)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
