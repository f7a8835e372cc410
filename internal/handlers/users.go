package handlers

import (
	"strings"

	"github.com/familyvault/backend/internal/middleware"
	"github.com/familyvault/backend/internal/models"
	"github.com/familyvault/backend/internal/services"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/familyvault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB     *gorm.DB
	Access *services.AccessService
	Family *services.FamilyService
}

func NewUsersHandler(db *gorm.DB, access *services.AccessService, family *services.FamilyService) *UsersHandler {
	return &UsersHandler{DB: db, Access: access, Family: family}
}

func (h *UsersHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	attachFamilyMembers(c, h.Family, currentUser)
	return utils.Success(c, fiber.StatusOK, currentUser)
}

type updateMeRequest struct {
	Name       *string `json:"name"`
	NationalID *string `json:"nationalId"`
}

// UpdateMe accepts only the enumerated mutable profile fields; everything
// else in the payload is ignored. Email, password and the family set have
// their own flows.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		value := strings.TrimSpace(*req.Name)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = value
	}
	if req.NationalID != nil {
		value := strings.TrimSpace(*req.NationalID)
		if value == "" {
			updates["national_id"] = nil
		} else {
			if !services.ValidNationalID(value) {
				return utils.Error(c, fiber.StatusBadRequest, "invalid national id format")
			}
			var other models.User
			err := h.DB.First(&other, "national_id = ? AND id <> ?", value, currentUser.ID).Error
			if err == nil {
				return utils.Error(c, fiber.StatusConflict, "national id already registered")
			} else if err != gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusInternalServerError, "failed checking national id")
			}
			updates["national_id"] = value
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	logger.InfoWithUser(currentUser.ID.String(), "profile_updated", map[string]interface{}{
		"fields": len(updates),
	})

	attachFamilyMembers(c, h.Family, &updated)
	return utils.Success(c, fiber.StatusOK, updated)
}

// Get serves a profile to its owner or to an actor holding the target in
// their family set.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	targetID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if !h.Access.CanViewProfile(c.Context(), currentUser.ID, targetID) {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to view this user profile")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", targetID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	attachFamilyMembers(c, h.Family, &target)
	return utils.Success(c, fiber.StatusOK, target)
}

type addFamilyMemberRequest struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"`
}

func (h *UsersHandler) AddFamilyMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req addFamilyMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" ||
		(req.IdentifierType != services.IdentifierEmail && req.IdentifierType != services.IdentifierNationalID) {
		return utils.Error(c, fiber.StatusBadRequest, "identifier and identifierType (email or nationalId) are required")
	}

	target, err := h.Family.ResolveIdentifier(c.Context(), req.IdentifierType, req.Identifier)
	if err != nil {
		switch err {
		case services.ErrInvalidNationalID:
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		case services.ErrUserNotFound:
			return utils.Error(c, fiber.StatusNotFound, err.Error())
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed resolving identifier")
		}
	}

	if err := h.Family.Link(c.Context(), currentUser.ID, target.ID); err != nil {
		switch err {
		case services.ErrSelfLink, services.ErrAlreadyLinked:
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed linking family member")
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "family_member_linked", map[string]interface{}{
		"member_id": target.ID.String(),
	})

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	attachFamilyMembers(c, h.Family, &updated)
	return utils.Message(c, fiber.StatusOK, "family member linked successfully", updated)
}

func (h *UsersHandler) RemoveFamilyMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	memberID, err := parseUUID(c.Params("memberId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid member id")
	}

	if err := h.Family.Unlink(c.Context(), currentUser.ID, memberID); err != nil {
		switch err {
		case services.ErrSelfUnlink, services.ErrNotLinked:
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed unlinking family member")
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "family_member_unlinked", map[string]interface{}{
		"member_id": memberID.String(),
	})

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated profile")
	}

	attachFamilyMembers(c, h.Family, &updated)
	return utils.Message(c, fiber.StatusOK, "family member unlinked successfully", updated)
}
