package services

import (
	"fmt"
	"sort"

	"codeq/internal/config"
)

// AcceptancePolicy decides which answer of a question counts as accepted.
type AcceptancePolicy interface {
	Name() string
	// Mark sets Accepted on at most one standing.
	Mark(standings []AnswerStanding)
}

func NewAcceptancePolicy(name string) (AcceptancePolicy, error) {
	switch name {
	case config.PolicyExplicit:
		return ExplicitAcceptance{}, nil
	case config.PolicyDerivedByScore:
		return ScoreAcceptance{}, nil
	}
	return nil, fmt.Errorf("unknown acceptance policy %q", name)
}

// ExplicitAcceptance trusts the flag the question author set.
type ExplicitAcceptance struct{}

func (ExplicitAcceptance) Name() string { return config.PolicyExplicit }

func (ExplicitAcceptance) Mark(standings []AnswerStanding) {
	found := false
	for i := range standings {
		standings[i].Accepted = !found && standings[i].Flagged
		if standings[i].Accepted {
			found = true
		}
	}
}

// ScoreAcceptance marks the single highest-scoring answer, provided its score
// is positive. Ties go to the earliest answer.
type ScoreAcceptance struct{}

func (ScoreAcceptance) Name() string { return config.PolicyDerivedByScore }

func (ScoreAcceptance) Mark(standings []AnswerStanding) {
	if len(standings) == 0 {
		return
	}
	order := make([]int, len(standings))
	for i := range order {
		order[i] = i
		standings[i].Accepted = false
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := standings[order[a]], standings[order[b]]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.Before(y.CreatedAt)
		}
		return x.AnswerID < y.AnswerID
	})

	top := order[0]
	if standings[top].Score > 0 {
		standings[top].Accepted = true
	}
}
