package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64
	WeightSave     float64
	WeightAnswer   float64
	WeightUpvote   float64
	WeightDownvote float64
	WeightView     float64
	ScaleFactor    float64
}

var DefaultConfig = RankConfig{
	Gravity:        1.5,
	WeightSave:     3.0,
	WeightAnswer:   2.0,
	WeightUpvote:   1.0,
	WeightDownvote: 1.5,
	WeightView:     0.01,
	ScaleFactor:    100.0,
}

// RankInput is the activity a question's hot rank is computed from.
type RankInput struct {
	CreatedAt time.Time
	Upvotes   int
	Downvotes int
	Answers   int
	Saves     int
	Views     int
}

// CalculateScore ranks a question by weighted activity, log-smoothed and
// decayed by age in hours.
func CalculateScore(in RankInput, now time.Time) float64 {
	hours := now.Sub(in.CreatedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	weightedSum := float64(in.Upvotes)*DefaultConfig.WeightUpvote +
		float64(in.Answers)*DefaultConfig.WeightAnswer +
		float64(in.Saves)*DefaultConfig.WeightSave +
		float64(in.Views)*DefaultConfig.WeightView -
		float64(in.Downvotes)*DefaultConfig.WeightDownvote

	if weightedSum < 0 {
		weightedSum = 0
	}

	numerator := math.Log10(weightedSum+1) * DefaultConfig.ScaleFactor
	decay := math.Pow(hours+2, DefaultConfig.Gravity)

	return numerator / decay
}
