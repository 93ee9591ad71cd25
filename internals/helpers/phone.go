package helper

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Kenyan mobile subscriber numbers start with 7 or 1 and have 9 digits after the country code.
var subscriberRe = regexp.MustCompile(`^[17][0-9]{8}$`)

// NormalizePhone accepts 07XXXXXXXX, 01XXXXXXXX, 7XXXXXXXX, 254XXXXXXXXX and +254XXXXXXXXX
// (spaces and dashes ignored) and returns 254XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	switch {
	case strings.HasPrefix(s, "254"):
		s = s[3:]
	case strings.HasPrefix(s, "0"):
		s = s[1:]
	}
	if !subscriberRe.MatchString(s) {
		return "", fiber.NewError(fiber.StatusBadRequest, "phone number must be a valid mobile number, e.g. 0712345678")
	}
	return "254" + s, nil
}
