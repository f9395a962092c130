package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/callback-service/internal/directory"
	"github.com/opsdesk/callback-service/internal/domain"
)

// UsersHandler serves the assignable-user directory.
type UsersHandler struct {
	directory *directory.Cache
}

// NewUsersHandler constructs handler.
func NewUsersHandler(cache *directory.Cache) *UsersHandler {
	return &UsersHandler{directory: cache}
}

// ListUsers GET /users. Served from the snapshot cache; at most one Graph
// round trip per freshness window.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.directory.Users(c.UserContext())
	if err != nil {
		return err
	}
	if users == nil {
		users = []domain.DirectoryUser{}
	}
	return c.JSON(fiber.Map{"data": users})
}
