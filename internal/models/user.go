// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Gender is the gender a user registered with.
type Gender string

const (
	// GenderMen identifies male users.
	GenderMen Gender = "men"
	// GenderWomen identifies female users.
	GenderWomen Gender = "women"
)

// Valid reports whether g is one of the supported genders.
func (g Gender) Valid() bool {
	return g == GenderMen || g == GenderWomen
}

// User represents a registered member of the dating service.
// Latitude and Longitude are either both set or both nil.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FirstName string    `gorm:"not null;index" json:"first_name"`
	LastName  string    `gorm:"not null;index" json:"last_name"`
	Gender    Gender    `gorm:"type:varchar(10);not null;index" json:"gender"`
	Avatar    string    `json:"avatar"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Outgoing likes, oldest first.
	Likes []Like `gorm:"foreignKey:LikerID;constraint:OnDelete:CASCADE" json:"-"`

	// Distance to the requester in meters, only set by distance listings.
	Distance *float64 `gorm:"-" json:"distance,omitempty"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasPosition reports whether the user has a geocoded position.
func (u *User) HasPosition() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// SetPosition stores the given coordinates, or clears both when ok is false.
func (u *User) SetPosition(lat, lon float64, ok bool) {
	if !ok {
		u.Latitude, u.Longitude = nil, nil
		return
	}
	u.Latitude, u.Longitude = &lat, &lon
}
