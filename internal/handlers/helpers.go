package handlers

import (
	"strings"

	"github.com/familyvault/backend/internal/models"
	"github.com/familyvault/backend/internal/services"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// attachFamilyMembers fills the transient familyMembers field before a user
// record is serialized. Load failures degrade to an empty set, logged.
func attachFamilyMembers(c *fiber.Ctx, family *services.FamilyService, user *models.User) {
	ids, err := family.MemberIDs(c.Context(), user.ID)
	if err != nil {
		logger.Error("family_members_load_failed", err, map[string]interface{}{
			"user_id": user.ID.String(),
		})
		ids = []uuid.UUID{}
	}
	user.FamilyMembers = ids
}
