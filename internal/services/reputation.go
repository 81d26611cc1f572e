package services

import (
	"time"

	"codeq/internal/models"

	"gorm.io/gorm"
)

// Reputation actions recorded in reputation_logs.
const (
	ActionAnswerPosted     = "answer_posted"
	ActionAnswerAccepted   = "answer_accepted"
	ActionAnswerUnaccepted = "answer_unaccepted"
)

const (
	ReputationAnswerPosted     = 2
	ReputationAnswerAccepted   = 15
	ReputationAnswerUnaccepted = -15
)

// DailyAnswerLimit is how many answers per day earn reputation.
const DailyAnswerLimit = 5

// AddReputation records the change and applies it to the user's balance.
// Pass a transaction to make it part of a larger write.
func AddReputation(tx *gorm.DB, userID uint, amount int, action string) error {
	entry := models.ReputationLog{
		UserID: userID,
		Amount: amount,
		Action: action,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", amount)).
		Error
}

// CanEarnAnswerReputation reports whether userID is still under today's
// answer limit.
func CanEarnAnswerReputation(tx *gorm.DB, userID uint, now time.Time) (bool, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var count int64
	err := tx.Model(&models.ReputationLog{}).
		Where("user_id = ? AND action = ? AND created_at >= ? AND created_at < ?",
			userID, ActionAnswerPosted, start, start.Add(24*time.Hour)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count < DailyAnswerLimit, nil
}
