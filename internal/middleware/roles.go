package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RoleAllowed reports whether role is a member of the allowed set. It is a
// pure function so authorization policy can be tested without a request.
func RoleAllowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// RoleRequired is a Fiber middleware gating a route to the given roles. It
// must run after AuthRequired.
func RoleRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}
		if !RoleAllowed(user.Role, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Insufficient role for this operation",
			})
		}
		return c.Next()
	}
}
