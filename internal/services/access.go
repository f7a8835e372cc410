package services

import (
	"context"

	"github.com/familyvault/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessService answers every authorization question the handlers ask. There
// is no role hierarchy: ownership and family membership are the only inputs.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// CanViewDocument is true for the owner and for users in the document's
// shared-with set.
func (a *AccessService) CanViewDocument(ctx context.Context, userID uuid.UUID, doc *models.Document) bool {
	if doc.OwnerID == userID {
		return true
	}

	var count int64
	if err := a.DB.WithContext(ctx).
		Model(&models.DocumentShare{}).
		Where("document_id = ? AND user_id = ?", doc.ID, userID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// CanMutateDocument covers metadata update, delete, and share-list changes.
// Only the owner qualifies; shared users get read access only.
func (a *AccessService) CanMutateDocument(userID uuid.UUID, doc *models.Document) bool {
	return doc.OwnerID == userID
}

// CanViewProfile is true for the user themselves and for anyone the actor
// holds in their own family set.
func (a *AccessService) CanViewProfile(ctx context.Context, actorID, targetID uuid.UUID) bool {
	if actorID == targetID {
		return true
	}

	var count int64
	if err := a.DB.WithContext(ctx).
		Model(&models.FamilyLink{}).
		Where("user_id = ? AND member_id = ?", actorID, targetID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}
