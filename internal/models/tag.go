package models

import (
	"time"
)

type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	Color       string    `gorm:"size:7;default:'#6B7280'" json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"-"`

	QuestionCount int `gorm:"->;-:migration" json:"questionCount"`
}
