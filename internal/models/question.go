package models

import (
	"time"
)

type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	AuthorID  uint      `gorm:"not null;index" json:"authorId"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	ViewCount int       `gorm:"default:0" json:"viewCount"`
	HotRank   float64   `gorm:"default:0;index" json:"-"` // list ordering only, see services.RankingService
	Tags      []Tag     `gorm:"many2many:question_tags;" json:"tags"`
	Answers   []Answer  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Filled at query time
	VoteScore   int `gorm:"-" json:"voteScore"`
	AnswerCount int `gorm:"-" json:"answerCount"`
}
