package auth

import (
	"strings"

	"backend-navi/internal/apperr"
	"backend-navi/internal/shared/identity"

	"github.com/gofiber/fiber/v2"
)

const claimsLocalsKey = "auth_claims"

// JWTMiddleware validates bearer tokens and stores the caller's identity in
// locals.
func JWTMiddleware(svc *Service) fiber.Handler {
	return authenticate(svc, false)
}

// QueryTokenMiddleware also accepts the token as ?token=, for websocket
// upgrades where browsers cannot set headers.
func QueryTokenMiddleware(svc *Service) fiber.Handler {
	return authenticate(svc, true)
}

func authenticate(svc *Service, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			return apperr.Unauthorized("missing bearer token")
		}

		claims, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		identity.Set(c, claims.UserID)
		c.Locals(claimsLocalsKey, claims)
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals(claimsLocalsKey).(*Claims)
	if !ok {
		return nil, apperr.Unauthorized("missing token")
	}
	return claims, nil
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
