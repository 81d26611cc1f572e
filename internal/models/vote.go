package models

import (
	"fmt"
	"time"
)

// Vote rows reference exactly one of QuestionID / AnswerID. Both columns are
// written only through SetTarget. The migration adds a CHECK constraint and
// foreign keys that cascade deletes of the target.
// PostgreSQL treats NULLs as distinct, so the two unique indexes only bite on
// the column that is set.
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index;uniqueIndex:idx_vote_user_question;uniqueIndex:idx_vote_user_answer" json:"userId"`
	QuestionID *uint     `gorm:"uniqueIndex:idx_vote_user_question" json:"questionId,omitempty"`
	AnswerID   *uint     `gorm:"uniqueIndex:idx_vote_user_answer" json:"answerId,omitempty"`
	Value      int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt  time.Time `json:"createdAt"`
}

type TargetKind string

const (
	TargetQuestion TargetKind = "question"
	TargetAnswer   TargetKind = "answer"
)

// VoteTarget is the question or answer a vote applies to.
type VoteTarget struct {
	Kind TargetKind
	ID   uint
}

func QuestionTarget(id uint) VoteTarget { return VoteTarget{Kind: TargetQuestion, ID: id} }
func AnswerTarget(id uint) VoteTarget   { return VoteTarget{Kind: TargetAnswer, ID: id} }

func (t VoteTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// Column is the vote column keyed by this target.
func (t VoteTarget) Column() string {
	if t.Kind == TargetAnswer {
		return "answer_id"
	}
	return "question_id"
}

func (t VoteTarget) Valid() bool {
	return t.ID != 0 && (t.Kind == TargetQuestion || t.Kind == TargetAnswer)
}

// SetTarget points the vote at t and clears the other column.
func (v *Vote) SetTarget(t VoteTarget) {
	id := t.ID
	switch t.Kind {
	case TargetAnswer:
		v.AnswerID = &id
		v.QuestionID = nil
	default:
		v.QuestionID = &id
		v.AnswerID = nil
	}
}

// Target reports which entity the row references.
func (v *Vote) Target() VoteTarget {
	if v.AnswerID != nil {
		return AnswerTarget(*v.AnswerID)
	}
	if v.QuestionID != nil {
		return QuestionTarget(*v.QuestionID)
	}
	return VoteTarget{}
}
