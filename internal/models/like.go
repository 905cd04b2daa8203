package models

import (
	"time"
)

// Like is a directed interest signal from one user toward another.
// Duplicate likes toward the same target are allowed; only the daily cap bounds them.
type Like struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	LikerID uint `gorm:"not null;index:idx_likes_liker_created" json:"liker_id"`
	// TargetID is the authoritative reference to the liked user.
	TargetID uint `gorm:"not null;index" json:"target_id"`
	// TargetEmail is a display copy taken when the like was recorded.
	TargetEmail string    `gorm:"not null" json:"target_email"`
	CreatedAt   time.Time `gorm:"not null;index:idx_likes_liker_created" json:"created_at"`

	// The liker side of the relation is owned by User.Likes.
	Target *User `gorm:"foreignKey:TargetID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}
