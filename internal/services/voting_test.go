package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"codeq/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVoting(t *testing.T, policy AcceptancePolicy) (*VotingService, *memStore) {
	t.Helper()
	store := newMemStore()
	for id := uint(1); id <= 5; id++ {
		store.addUser(id)
	}
	store.addQuestion(10)
	store.addAnswer(100, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if policy == nil {
		policy = ScoreAcceptance{}
	}
	return NewVotingService(store, policy, zerolog.Nop()), store
}

func TestCastVoteTransitions(t *testing.T) {
	tests := []struct {
		name       string
		initial    int // 0 means no vote
		value      int
		wantAction VoteAction
		wantValue  *int
	}{
		{"absent to upvoted", 0, 1, ActionCast, intPtr(1)},
		{"absent to downvoted", 0, -1, ActionCast, intPtr(-1)},
		{"upvoted to absent", 1, 1, ActionRetracted, nil},
		{"upvoted to downvoted", 1, -1, ActionUpdated, intPtr(-1)},
		{"downvoted to absent", -1, -1, ActionRetracted, nil},
		{"downvoted to upvoted", -1, 1, ActionUpdated, intPtr(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestVoting(t, nil)
			ctx := context.Background()
			target := models.QuestionTarget(10)

			if tt.initial != 0 {
				_, err := svc.CastVote(ctx, 1, target, tt.initial)
				require.NoError(t, err)
			}

			result, err := svc.CastVote(ctx, 1, target, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, result.Action)
			assert.Equal(t, tt.wantValue, result.Value)

			rows := store.rows(1, target)
			if tt.wantValue == nil {
				assert.Empty(t, rows)
			} else {
				require.Len(t, rows, 1)
				assert.Equal(t, *tt.wantValue, rows[0].Value)
			}
		})
	}
}

func TestCastVoteSameValueTwiceLeavesNoRow(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	ctx := context.Background()
	target := models.AnswerTarget(100)

	_, err := svc.CastVote(ctx, 2, target, 1)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, 2, target, 1)
	require.NoError(t, err)

	assert.Empty(t, store.rows(2, target))
	score, err := svc.GetScore(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestCastVoteSwitchKeepsSingleRow(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	ctx := context.Background()
	target := models.QuestionTarget(10)

	_, err := svc.CastVote(ctx, 3, target, 1)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, 3, target, -1)
	require.NoError(t, err)

	rows := store.rows(3, target)
	require.Len(t, rows, 1)
	assert.Equal(t, -1, rows[0].Value)
}

func TestCastVoteTwoUsersScenario(t *testing.T) {
	svc, _ := newTestVoting(t, nil)
	ctx := context.Background()
	q := models.QuestionTarget(10)

	steps := []struct {
		user      uint
		value     int
		wantScore int
	}{
		{1, 1, 1},
		{2, 1, 2},
		{1, -1, 0},
		{1, -1, 1},
	}
	for i, step := range steps {
		_, err := svc.CastVote(ctx, step.user, q, step.value)
		require.NoError(t, err, "step %d", i)
		score, err := svc.GetScore(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, step.wantScore, score, "score after step %d", i)
	}
}

func TestCastVoteRandomSequencesMatchStateMachine(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	targets := []models.VoteTarget{models.QuestionTarget(10), models.AnswerTarget(100)}

	for round := 0; round < 20; round++ {
		svc, store := newTestVoting(t, nil)
		ctx := context.Background()
		expected := map[uint]map[models.VoteTarget]int{}

		for i := 0; i < 60; i++ {
			user := uint(rng.Intn(5) + 1)
			target := targets[rng.Intn(len(targets))]
			value := 1
			if rng.Intn(2) == 0 {
				value = -1
			}

			_, err := svc.CastVote(ctx, user, target, value)
			require.NoError(t, err)

			if expected[user] == nil {
				expected[user] = map[models.VoteTarget]int{}
			}
			if expected[user][target] == value {
				delete(expected[user], target)
			} else {
				expected[user][target] = value
			}
		}

		for _, target := range targets {
			want := 0
			for user := uint(1); user <= 5; user++ {
				rows := store.rows(user, target)
				if v, ok := expected[user][target]; ok {
					require.Len(t, rows, 1)
					assert.Equal(t, v, rows[0].Value)
					want += v
				} else {
					assert.Empty(t, rows)
				}
			}
			score, err := svc.GetScore(ctx, target)
			require.NoError(t, err)
			assert.Equal(t, want, score)
			assert.Equal(t, store.storedSum(target), score)
		}
	}
}

func TestCastVoteConcurrentInsertLeavesOneRow(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	target := models.QuestionTarget(10)

	gate := &sync.WaitGroup{}
	gate.Add(2)
	store.findGate = gate
	store.findGateN = 2

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]VoteResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CastVote(context.Background(), 4, target, 1)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	rows := store.rows(4, target)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Value)

	actions := []VoteAction{results[0].Action, results[1].Action}
	assert.ElementsMatch(t, []VoteAction{ActionCast, ActionUpdated}, actions)
}

func TestCastVoteConcurrentOppositeValues(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	target := models.AnswerTarget(100)

	gate := &sync.WaitGroup{}
	gate.Add(2)
	store.findGate = gate
	store.findGateN = 2

	var wg sync.WaitGroup
	for _, v := range []int{1, -1} {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, err := svc.CastVote(context.Background(), 5, target, v)
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	rows := store.rows(5, target)
	require.Len(t, rows, 1)
	assert.Contains(t, []int{1, -1}, rows[0].Value)
}

func TestCastVoteConcurrentSwitchIsLinearizable(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	ctx := context.Background()
	target := models.QuestionTarget(10)

	_, err := svc.CastVote(ctx, 2, target, 1)
	require.NoError(t, err)

	// Both casts read the +1 row before either writes.
	gate := &sync.WaitGroup{}
	gate.Add(2)
	store.readGate = gate
	store.readGateN = 2

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]VoteResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CastVote(ctx, 2, target, -1)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	actions := []VoteAction{results[0].Action, results[1].Action}
	assert.ElementsMatch(t, []VoteAction{ActionUpdated, ActionRetracted}, actions)
	assert.Empty(t, store.rows(2, target))

	score, err := svc.GetScore(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestCastVoteErrors(t *testing.T) {
	svc, _ := newTestVoting(t, nil)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, 0, models.QuestionTarget(10), 1)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.CastVote(ctx, 1, models.QuestionTarget(10), 2)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.CastVote(ctx, 1, models.QuestionTarget(10), 0)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.CastVote(ctx, 99, models.QuestionTarget(10), 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.CastVote(ctx, 1, models.QuestionTarget(11), 1)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = svc.CastVote(ctx, 1, models.AnswerTarget(101), -1)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = svc.CastVote(ctx, 1, models.VoteTarget{Kind: "comment", ID: 10}, 1)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestCastVoteStorageFailure(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	boom := errors.New("connection reset")
	store.failInsert = boom

	_, err := svc.CastVote(context.Background(), 1, models.QuestionTarget(10), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.rows(1, models.QuestionTarget(10)))
}

func TestCastVoteGivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	store.failInsert = ErrDuplicateVote

	_, err := svc.CastVote(context.Background(), 1, models.QuestionTarget(10), 1)
	assert.ErrorIs(t, err, ErrVoteConflict)
}

func TestGetScore(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	ctx := context.Background()

	score, err := svc.GetScore(ctx, models.QuestionTarget(10))
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	store.setScore(models.QuestionTarget(10), -3)
	score, err = svc.GetScore(ctx, models.QuestionTarget(10))
	require.NoError(t, err)
	assert.Equal(t, -3, score)

	_, err = svc.GetScore(ctx, models.QuestionTarget(404))
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestUserVotes(t *testing.T) {
	svc, _ := newTestVoting(t, nil)
	ctx := context.Background()
	q, a := models.QuestionTarget(10), models.AnswerTarget(100)

	_, err := svc.CastVote(ctx, 1, a, -1)
	require.NoError(t, err)

	votes, err := svc.UserVotes(ctx, 1, []models.VoteTarget{q, a})
	require.NoError(t, err)
	assert.Equal(t, map[models.VoteTarget]int{a: -1}, votes)

	votes, err = svc.UserVotes(ctx, 0, []models.VoteTarget{q, a})
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestResolveAcceptedAnswer(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("derived picks highest score", func(t *testing.T) {
		svc, store := newTestVoting(t, ScoreAcceptance{})
		store.addAnswer(201, 10, base)
		store.addAnswer(202, 10, base.Add(time.Minute))
		store.addAnswer(203, 10, base.Add(2*time.Minute))
		store.setScore(models.AnswerTarget(201), 3)
		store.setScore(models.AnswerTarget(202), 5)

		id, err := svc.ResolveAcceptedAnswer(context.Background(), 10)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, uint(202), *id)
	})

	t.Run("derived with no positive score", func(t *testing.T) {
		svc, store := newTestVoting(t, ScoreAcceptance{})
		store.setScore(models.AnswerTarget(100), -1)
		store.addAnswer(201, 10, base)

		id, err := svc.ResolveAcceptedAnswer(context.Background(), 10)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("explicit follows the flag", func(t *testing.T) {
		svc, store := newTestVoting(t, ExplicitAcceptance{})
		store.addAnswer(201, 10, base)
		store.setScore(models.AnswerTarget(201), 10)
		store.answers[100].accepted = true

		id, err := svc.ResolveAcceptedAnswer(context.Background(), 10)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, uint(100), *id)
	})

	t.Run("unknown question", func(t *testing.T) {
		svc, _ := newTestVoting(t, nil)
		_, err := svc.ResolveAcceptedAnswer(context.Background(), 404)
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})

	t.Run("recomputed after every vote", func(t *testing.T) {
		svc, store := newTestVoting(t, ScoreAcceptance{})
		store.addAnswer(201, 10, base.Add(time.Hour))
		ctx := context.Background()

		_, err := svc.CastVote(ctx, 1, models.AnswerTarget(201), 1)
		require.NoError(t, err)
		id, err := svc.ResolveAcceptedAnswer(ctx, 10)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, uint(201), *id)

		_, err = svc.CastVote(ctx, 1, models.AnswerTarget(201), 1)
		require.NoError(t, err)
		id, err = svc.ResolveAcceptedAnswer(ctx, 10)
		require.NoError(t, err)
		assert.Nil(t, id)
	})
}

func TestScores(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	store.addAnswer(101, 10, time.Now())
	store.setScore(models.AnswerTarget(100), 2)
	store.setScore(models.QuestionTarget(10), -1)

	scores, err := svc.Scores(context.Background(), models.TargetAnswer, []uint{100, 101})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{100: 2, 101: 0}, scores)
}

func TestCheckAnswerOf(t *testing.T) {
	svc, store := newTestVoting(t, nil)
	store.addQuestion(11)
	store.addAnswer(300, 11, time.Now())
	ctx := context.Background()

	assert.NoError(t, svc.CheckAnswerOf(ctx, 10, 100))
	assert.ErrorIs(t, svc.CheckAnswerOf(ctx, 10, 300), ErrTargetNotFound)
	assert.ErrorIs(t, svc.CheckAnswerOf(ctx, 10, 999), ErrTargetNotFound)
}
