package models

import (
	"time"
)

type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"uniqueIndex;size:191;not null" json:"-"` // Identity provider subject, e.g. "google:1234"
	Email       string    `gorm:"uniqueIndex;not null" json:"-"`
	Name        string    `gorm:"not null" json:"name"`
	DisplayName string    `json:"displayName"`
	Password    string    `json:"-"` // bcrypt hash, empty for OAuth-only accounts
	AvatarURL   string    `json:"avatarUrl"`
	Bio         string    `gorm:"size:500" json:"bio"`
	Reputation  int       `gorm:"default:0" json:"reputation"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PublicName prefers the display name the user chose.
func (u *User) PublicName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}
