package models

import (
	"time"

	"github.com/google/uuid"
)

// FamilyLink stores one direction of a family relationship: the row (UserID,
// MemberID) means MemberID is in UserID's family set. The reverse row is
// written best-effort, so a one-directional link can transiently exist.
type FamilyLink struct {
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	MemberID  uuid.UUID `json:"memberId" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
}

func (FamilyLink) TableName() string {
	return "family_links"
}
