package utils

import (
	"time"
)

// GetUserLevel maps reputation to a display level.
func GetUserLevel(reputation int) (name string, badge string) {
	switch {
	case reputation >= 1000:
		return "Guru", "gold"
	case reputation >= 200:
		return "Expert", "silver"
	case reputation >= 50:
		return "Contributor", "bronze"
	case reputation >= 10:
		return "Learner", "green"
	default:
		return "Newcomer", "gray"
	}
}

// GetDaysSinceJoined counts whole days since createdAt.
func GetDaysSinceJoined(createdAt time.Time) int {
	return int(time.Since(createdAt).Hours() / 24)
}
