package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys written by the JWT middleware.
const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
	LocalUserRoles = "user_roles"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// GetUserIDFromToken reads c.Locals("user_id").
// 401 when not logged in, 400 when the value is not a UUID.
func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals(LocalUserID)
	if v == nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "not logged in")
	}

	var s string
	switch t := v.(type) {
	case uuid.UUID:
		if t == uuid.Nil {
			return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "not logged in")
		}
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid user id in token")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "not logged in")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid user id in token")
	}
	return id, nil
}

// CurrentIdentity returns the caller's id, email and roles.
func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	id, err := GetUserIDFromToken(c)
	if err != nil {
		return Identity{}, err
	}
	out := Identity{UserID: id}
	if e, ok := c.Locals(LocalUserEmail).(string); ok {
		out.Email = e
	}
	if rs, ok := c.Locals(LocalUserRoles).([]string); ok {
		out.Roles = rs
	}
	return out, nil
}
