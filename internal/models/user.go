package models

import "github.com/google/uuid"

type User struct {
	BaseModel
	Name         string  `json:"name" gorm:"type:varchar(100);not null"`
	Email        string  `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"type:text;not null"`
	NationalID   *string `json:"nationalId,omitempty" gorm:"type:varchar(12);uniqueIndex"`

	Documents []Document `json:"-" gorm:"foreignKey:OwnerID"`

	// FamilyMembers is loaded from family_links rows before serialization.
	FamilyMembers []uuid.UUID `json:"familyMembers" gorm:"-"`
}
