// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	helper "rentflow_backend/internals/helpers"
)

// AuthMiddleware verifies an HMAC-signed access token from the Authorization
// header (or the access_token cookie) and stores the caller in Locals.
func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	log = log.Named("auth")
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		if len(key) == 0 {
			log.Error("JWT secret is empty")
			return helper.JsonError(c, fiber.StatusInternalServerError, "missing JWT secret")
		}

		// 1) token
		tokenString, err := extractBearerToken(c)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
		}

		// 2) signature + exp/nbf
		claims := jwt.MapClaims{}
		if _, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}); err != nil {
			log.Debug("token rejected", zap.Error(err))
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - invalid or expired token")
		}
		if _, ok := claims["exp"]; !ok {
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - token has no expiry")
		}

		// 3) subject
		userID, err := extractUserID(claims)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, "unauthorized - invalid or missing user id")
		}

		c.Locals(helper.LocalUserID, userID.String())
		storeClaimsToLocals(c, claims)
		return c.Next()
	}
}
