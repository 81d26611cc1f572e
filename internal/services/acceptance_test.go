package services

import (
	"testing"
	"time"

	"codeq/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standingsAt(base time.Time, scores ...int) []AnswerStanding {
	out := make([]AnswerStanding, len(scores))
	for i, s := range scores {
		out[i] = AnswerStanding{
			AnswerID:  uint(i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Score:     s,
		}
	}
	return out
}

func accepted(standings []AnswerStanding) []uint {
	var ids []uint
	for _, s := range standings {
		if s.Accepted {
			ids = append(ids, s.AnswerID)
		}
	}
	return ids
}

func TestScoreAcceptance(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		scores []int
		want   []uint
	}{
		{"highest score wins", []int{3, 5, 0}, []uint{2}},
		{"all non positive", []int{0, -2, 0}, nil},
		{"tie goes to earliest", []int{1, 4, 4}, []uint{2}},
		{"single positive", []int{1}, []uint{1}},
		{"no answers", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			standings := standingsAt(base, tt.scores...)
			ScoreAcceptance{}.Mark(standings)
			assert.Equal(t, tt.want, accepted(standings))
		})
	}
}

func TestScoreAcceptanceTieOnTimestampUsesID(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	standings := []AnswerStanding{
		{AnswerID: 9, CreatedAt: at, Score: 2},
		{AnswerID: 4, CreatedAt: at, Score: 2},
	}
	ScoreAcceptance{}.Mark(standings)
	assert.Equal(t, []uint{4}, accepted(standings))
}

func TestScoreAcceptanceIgnoresFlag(t *testing.T) {
	standings := standingsAt(time.Now(), 0, 2)
	standings[0].Flagged = true
	ScoreAcceptance{}.Mark(standings)
	assert.Equal(t, []uint{2}, accepted(standings))
}

func TestExplicitAcceptance(t *testing.T) {
	standings := standingsAt(time.Now(), 10, 0, 1)
	standings[1].Flagged = true
	ExplicitAcceptance{}.Mark(standings)
	assert.Equal(t, []uint{2}, accepted(standings))

	none := standingsAt(time.Now(), 10, 3)
	ExplicitAcceptance{}.Mark(none)
	assert.Empty(t, accepted(none))
}

func TestNewAcceptancePolicy(t *testing.T) {
	p, err := NewAcceptancePolicy(config.PolicyExplicit)
	require.NoError(t, err)
	assert.Equal(t, config.PolicyExplicit, p.Name())

	p, err = NewAcceptancePolicy(config.PolicyDerivedByScore)
	require.NoError(t, err)
	assert.Equal(t, config.PolicyDerivedByScore, p.Name())

	_, err = NewAcceptancePolicy("most-recent")
	assert.Error(t, err)
}
