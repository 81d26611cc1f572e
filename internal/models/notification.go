package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeNewAnswer      NotificationType = "new_answer"
	NotificationTypeAnswerAccepted NotificationType = "answer_accepted"
)

type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"userId"` // Receiver
	User       User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ActorID    *uint            `gorm:"index" json:"actorId"`
	Actor      *User            `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	Type       NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	QuestionID uint             `gorm:"not null;index" json:"questionId"`
	Message    string           `gorm:"type:text" json:"message"`
	IsRead     bool             `gorm:"default:false;index" json:"isRead"`
	CreatedAt  time.Time        `json:"createdAt"`
}
