package models

import (
	"time"
)

// SavedQuestion is a user's bookmark on a question
type SavedQuestion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index;uniqueIndex:idx_user_question_save" json:"userId"`
	QuestionID uint      `gorm:"not null;index;uniqueIndex:idx_user_question_save" json:"questionId"`
	Question   Question  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"question"`
	CreatedAt  time.Time `json:"createdAt"`
}
