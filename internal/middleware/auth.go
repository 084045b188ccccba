package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/hotslice/internal/utils"
)

const claimsContextKey = "currentClaims"

// AuthMiddleware validates JWT tokens and loads the caller's claims into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, present, err := bearerClaims(c, secret)
		if !present {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		if err != nil {
			return err
		}

		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// OptionalAuth loads claims when a token is sent and lets anonymous requests
// through. A token that is sent but invalid is still rejected.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, present, err := bearerClaims(c, secret)
		if err != nil {
			return err
		}
		if present {
			c.Locals(claimsContextKey, claims)
		}
		return c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetClaims(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		for _, role := range roles {
			if claims.Role == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient role")
	}
}

func bearerClaims(c *fiber.Ctx, secret string) (utils.Claims, bool, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		// EventSource cannot set headers, so streams pass the token in the query.
		token := c.Query("access_token")
		if token == "" {
			return utils.Claims{}, false, nil
		}
		authHeader = "Bearer " + token
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return utils.Claims{}, true, fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	claims, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return utils.Claims{}, true, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return claims, true, nil
}

// GetClaims returns the authenticated caller, if any.
func GetClaims(c *fiber.Ctx) (utils.Claims, bool) {
	claims, ok := c.Locals(claimsContextKey).(utils.Claims)
	return claims, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
