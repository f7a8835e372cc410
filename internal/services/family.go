package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/familyvault/backend/internal/models"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	IdentifierEmail      = "email"
	IdentifierNationalID = "nationalId"
)

var (
	ErrUserNotFound      = errors.New("user not found with the provided identifier")
	ErrInvalidNationalID = errors.New("invalid national id format")
	ErrUnknownIdentifier = errors.New("unsupported identifier type")
	ErrSelfLink          = errors.New("cannot link yourself as a family member")
	ErrAlreadyLinked     = errors.New("this user is already linked as a family member")
	ErrSelfUnlink        = errors.New("cannot unlink yourself from your family")
	ErrNotLinked         = errors.New("this user is not linked as a family member")
)

var nationalIDPattern = regexp.MustCompile(`^\d{12}$`)

func ValidNationalID(value string) bool {
	return nationalIDPattern.MatchString(value)
}

// FamilyService maintains the family-link graph. Each user owns their own
// neighbor set (one family_links row per direction); the reverse direction is
// mirrored best-effort rather than transactionally, trading strict symmetry
// for availability of the primary write.
type FamilyService struct {
	DB *gorm.DB
}

func NewFamilyService(db *gorm.DB) *FamilyService {
	return &FamilyService{DB: db}
}

func (s *FamilyService) ResolveIdentifier(ctx context.Context, identifierType, identifier string) (*models.User, error) {
	var user models.User
	var err error

	switch identifierType {
	case IdentifierEmail:
		email := strings.ToLower(strings.TrimSpace(identifier))
		err = s.DB.WithContext(ctx).First(&user, "email = ?", email).Error
	case IdentifierNationalID:
		value := strings.TrimSpace(identifier)
		if !ValidNationalID(value) {
			return nil, ErrInvalidNationalID
		}
		err = s.DB.WithContext(ctx).First(&user, "national_id = ?", value).Error
	default:
		return nil, ErrUnknownIdentifier
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolving identifier: %w", err)
	}

	return &user, nil
}

func (s *FamilyService) Link(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrSelfLink
	}

	var count int64
	if err := s.DB.WithContext(ctx).
		Model(&models.FamilyLink{}).
		Where("user_id = ? AND member_id = ?", actorID, targetID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("checking existing link: %w", err)
	}
	if count > 0 {
		return ErrAlreadyLinked
	}

	if err := s.DB.WithContext(ctx).
		Create(&models.FamilyLink{UserID: actorID, MemberID: targetID}).Error; err != nil {
		return fmt.Errorf("creating family link: %w", err)
	}

	// Mirror write is best-effort: failure leaves a tolerated one-directional
	// link, it does not fail the primary operation.
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FamilyLink{UserID: targetID, MemberID: actorID}).Error; err != nil {
		logger.Error("family_mirror_link_failed", err, map[string]interface{}{
			"user_id":   actorID.String(),
			"member_id": targetID.String(),
		})
	}

	return nil
}

func (s *FamilyService) Unlink(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrSelfUnlink
	}

	result := s.DB.WithContext(ctx).
		Delete(&models.FamilyLink{}, "user_id = ? AND member_id = ?", actorID, targetID)
	if result.Error != nil {
		return fmt.Errorf("removing family link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotLinked
	}

	if err := s.DB.WithContext(ctx).
		Delete(&models.FamilyLink{}, "user_id = ? AND member_id = ?", targetID, actorID).Error; err != nil {
		logger.Error("family_mirror_unlink_failed", err, map[string]interface{}{
			"user_id":   actorID.String(),
			"member_id": targetID.String(),
		})
	}

	return nil
}

// MemberIDs returns the family set as the user's own rows record it.
func (s *FamilyService) MemberIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var links []models.FamilyLink
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("loading family members: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.MemberID)
	}
	return ids, nil
}
