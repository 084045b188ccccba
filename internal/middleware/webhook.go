package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WebhookSecretHeader carries the shared secret of the payment adapter.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuthMiddleware accepts the shared secret either in
// X-Webhook-Secret or as the password of a Basic Authorization header, the
// form most payment gateways use for merchant callbacks. An empty secret
// disables the endpoint.
func WebhookAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "payment webhook is not configured")
		}

		provided := c.Get(WebhookSecretHeader)
		if provided == "" {
			provided = basicPassword(c.Get("Authorization"))
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook credentials")
		}

		return c.Next()
	}
}

func basicPassword(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return ""
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return ""
	}

	_, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return ""
	}
	return password
}
