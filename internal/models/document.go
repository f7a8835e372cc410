package models

import "github.com/google/uuid"

type Document struct {
	BaseModel
	OwnerID      uuid.UUID `json:"ownerId" gorm:"type:uuid;not null;index"`
	FileName     string    `json:"fileName" gorm:"type:varchar(255);not null"`
	MimeType     string    `json:"fileMimeType" gorm:"type:varchar(255);not null"`
	Size         int64     `json:"fileSize" gorm:"not null;default:0"`
	DocumentType string    `json:"documentType" gorm:"type:varchar(100);not null"`
	Description  string    `json:"description" gorm:"type:text"`
	StoragePath  string    `json:"-" gorm:"type:text;not null"`

	Owner  User            `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Shares []DocumentShare `json:"-" gorm:"foreignKey:DocumentID"`

	// SharedWith is loaded from document_shares rows before serialization.
	// The owner is never a member; owner access is implicit.
	SharedWith []uuid.UUID `json:"sharedWith" gorm:"-"`
}
