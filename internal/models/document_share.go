package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentShare grants one user read access to one document beyond the owner.
type DocumentShare struct {
	DocumentID uuid.UUID `json:"documentId" gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (DocumentShare) TableName() string {
	return "document_shares"
}
