package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rentflow_backend/internals/constants"
	helper "rentflow_backend/internals/helpers"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newApp(t *testing.T, extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{AuthMiddleware(secret, zaptest.NewLogger(t))}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		who, err := helper.CurrentIdentity(c)
		if err != nil {
			return helper.FromFiberError(c, err)
		}
		return c.JSON(fiber.Map{"id": who.UserID.String(), "email": who.Email, "roles": who.Roles})
	})
	app.Get("/me", handlers...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := newApp(t)
	userID := uuid.New()
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		setup  func(r *fiberRequest)
		status int
	}{
		{"bearer header", func(r *fiberRequest) {
			r.bearer(sign(t, jwt.MapClaims{"id": userID.String(), "email": "a@b.test", "exp": future}, secret))
		}, fiber.StatusOK},
		{"cookie", func(r *fiberRequest) {
			r.cookie(sign(t, jwt.MapClaims{"sub": userID.String(), "exp": future}, secret))
		}, fiber.StatusOK},
		{"missing", func(r *fiberRequest) {}, fiber.StatusUnauthorized},
		{"wrong key", func(r *fiberRequest) {
			r.bearer(sign(t, jwt.MapClaims{"id": userID.String(), "exp": future}, "other"))
		}, fiber.StatusUnauthorized},
		{"expired", func(r *fiberRequest) {
			r.bearer(sign(t, jwt.MapClaims{"id": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}, secret))
		}, fiber.StatusUnauthorized},
		{"no exp", func(r *fiberRequest) {
			r.bearer(sign(t, jwt.MapClaims{"id": userID.String()}, secret))
		}, fiber.StatusUnauthorized},
		{"bad subject", func(r *fiberRequest) {
			r.bearer(sign(t, jwt.MapClaims{"id": "not-a-uuid", "exp": future}, secret))
		}, fiber.StatusUnauthorized},
		{"bad scheme", func(r *fiberRequest) {
			r.req.Header.Set("Authorization", "Token abc")
		}, fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fiberRequest{req: httptest.NewRequest("GET", "/me", nil)}
			tc.setup(r)
			res, err := app.Test(r.req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.StatusCode)
		})
	}
}

func TestOnlyRoles(t *testing.T) {
	app := newApp(t, OnlyRoles("", constants.ManagerRoles...))
	future := time.Now().Add(time.Hour).Unix()

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"id": uuid.NewString(), "roles": []string{"tenant"}, "exp": future}, secret))
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"id": uuid.NewString(), "role": "landlord", "exp": future}, secret))
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

type fiberRequest struct {
	req *http.Request
}

func (r *fiberRequest) bearer(tok string) { r.req.Header.Set("Authorization", "Bearer "+tok) }

func (r *fiberRequest) cookie(tok string) {
	r.req.AddCookie(&http.Cookie{Name: "access_token", Value: tok})
}
