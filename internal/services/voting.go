package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeq/internal/metrics"
	"codeq/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUserNotFound     = errors.New("user not found")
	ErrTargetNotFound   = errors.New("vote target not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidValue     = errors.New("vote value must be 1 or -1")
	ErrVoteConflict     = errors.New("vote changed concurrently too many times")
)

// Errors a VoteStore reports for the voting state machine.
var (
	ErrVoteNotFound  = errors.New("vote not found")
	ErrDuplicateVote = errors.New("vote already exists for user and target")
	ErrStaleVote     = errors.New("vote row changed before write")
)

const maxVoteAttempts = 3

type VoteAction string

const (
	ActionCast      VoteAction = "cast"
	ActionRetracted VoteAction = "retracted"
	ActionUpdated   VoteAction = "updated"
)

// VoteResult describes the transition a cast applied. Value is nil once the
// vote has been retracted.
type VoteResult struct {
	Action VoteAction
	Value  *int
}

// AnswerStanding is one answer of a question with its current score.
// Flagged mirrors the persisted is_accepted column; Accepted is what the
// configured AcceptancePolicy decided.
type AnswerStanding struct {
	AnswerID  uint
	CreatedAt time.Time
	Score     int
	Flagged   bool
	Accepted  bool
}

// VoteStore is the persistence the voting service needs. Every mutating
// method is a single statement.
type VoteStore interface {
	UserExists(ctx context.Context, userID uint) (bool, error)
	QuestionExists(ctx context.Context, questionID uint) (bool, error)
	TargetExists(ctx context.Context, target models.VoteTarget) (bool, error)

	// FindVote returns ErrVoteNotFound when the user has no vote on target.
	FindVote(ctx context.Context, userID uint, target models.VoteTarget) (*models.Vote, error)
	// InsertVote returns ErrDuplicateVote on a uniqueness violation.
	InsertVote(ctx context.Context, vote *models.Vote) error
	// DeleteVote removes the row only if it still holds value; ErrStaleVote otherwise.
	DeleteVote(ctx context.Context, voteID uint, value int) error
	// UpdateVoteValue switches the row from one value to the other only if it
	// still holds from; ErrStaleVote otherwise.
	UpdateVoteValue(ctx context.Context, voteID uint, from, to int) error

	// AnswerQuestionID returns the question an answer belongs to, or
	// ErrTargetNotFound.
	AnswerQuestionID(ctx context.Context, answerID uint) (uint, error)

	SumVotes(ctx context.Context, target models.VoteTarget) (int, error)
	// SumVotesMany sums several targets of one kind in a single query.
	// Targets without votes are absent.
	SumVotesMany(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error)
	UserVotes(ctx context.Context, userID uint, targets []models.VoteTarget) (map[models.VoteTarget]int, error)
	// AnswerStandings lists a question's answers ordered by created_at, id.
	AnswerStandings(ctx context.Context, questionID uint) ([]AnswerStanding, error)
}

type VotingService struct {
	store  VoteStore
	policy AcceptancePolicy
	logger zerolog.Logger
}

func NewVotingService(store VoteStore, policy AcceptancePolicy, logger zerolog.Logger) *VotingService {
	return &VotingService{
		store:  store,
		policy: policy,
		logger: logger.With().Str("component", "voting").Logger(),
	}
}

// Policy is the acceptance policy answers are resolved with.
func (s *VotingService) Policy() AcceptancePolicy {
	return s.policy
}

// CastVote applies one click of the vote buttons: a new value is cast, the
// same value again retracts it, the opposite value switches it.
func (s *VotingService) CastVote(ctx context.Context, userID uint, target models.VoteTarget, value int) (VoteResult, error) {
	if userID == 0 {
		return VoteResult{}, ErrUnauthenticated
	}
	if value != 1 && value != -1 {
		return VoteResult{}, ErrInvalidValue
	}

	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return VoteResult{}, fmt.Errorf("look up user %d: %w", userID, err)
	}
	if !ok {
		return VoteResult{}, ErrUserNotFound
	}
	if err := s.requireTarget(ctx, target); err != nil {
		return VoteResult{}, err
	}

	conflicted := false
	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		result, err := s.apply(ctx, userID, target, value, conflicted)
		switch {
		case err == nil:
			metrics.VotesTotal.WithLabelValues(string(target.Kind), string(result.Action)).Inc()
			s.logger.Debug().
				Uint("user_id", userID).
				Str("target", target.String()).
				Str("action", string(result.Action)).
				Msg("vote applied")
			return result, nil
		case errors.Is(err, ErrDuplicateVote):
			// Another request inserted first; settle on the requested value.
			conflicted = true
		case errors.Is(err, ErrStaleVote):
		default:
			s.logger.Error().Err(err).
				Uint("user_id", userID).
				Str("target", target.String()).
				Msg("vote transition failed")
			return VoteResult{}, fmt.Errorf("cast vote on %s: %w", target, err)
		}
		metrics.VoteConflicts.Inc()
	}

	s.logger.Warn().Uint("user_id", userID).Str("target", target.String()).Msg("vote retries exhausted")
	return VoteResult{}, ErrVoteConflict
}

// apply runs one read-modify-write round. With setOnly the caller lost an
// insert race, so an existing vote with the same value is kept, not retracted.
func (s *VotingService) apply(ctx context.Context, userID uint, target models.VoteTarget, value int, setOnly bool) (VoteResult, error) {
	existing, err := s.store.FindVote(ctx, userID, target)
	if errors.Is(err, ErrVoteNotFound) {
		vote := &models.Vote{UserID: userID, Value: value}
		vote.SetTarget(target)
		if err := s.store.InsertVote(ctx, vote); err != nil {
			return VoteResult{}, err
		}
		return VoteResult{Action: ActionCast, Value: intPtr(value)}, nil
	}
	if err != nil {
		return VoteResult{}, err
	}

	switch {
	case existing.Value != value:
		if err := s.store.UpdateVoteValue(ctx, existing.ID, existing.Value, value); err != nil {
			return VoteResult{}, err
		}
		return VoteResult{Action: ActionUpdated, Value: intPtr(value)}, nil
	case setOnly:
		return VoteResult{Action: ActionUpdated, Value: intPtr(value)}, nil
	default:
		if err := s.store.DeleteVote(ctx, existing.ID, value); err != nil {
			return VoteResult{}, err
		}
		return VoteResult{Action: ActionRetracted}, nil
	}
}

// GetScore sums the stored votes of target. It is never cached.
func (s *VotingService) GetScore(ctx context.Context, target models.VoteTarget) (int, error) {
	if err := s.requireTarget(ctx, target); err != nil {
		return 0, err
	}
	score, err := s.store.SumVotes(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("sum votes for %s: %w", target, err)
	}
	return score, nil
}

// Scores is GetScore for many targets of one kind, read in one query. Ids
// without votes map to 0; existence is not checked.
func (s *VotingService) Scores(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error) {
	scores := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return scores, nil
	}
	sums, err := s.store.SumVotesMany(ctx, kind, ids)
	if err != nil {
		return nil, fmt.Errorf("sum %s votes: %w", kind, err)
	}
	for _, id := range ids {
		scores[id] = sums[id]
	}
	return scores, nil
}

// CheckAnswerOf returns ErrTargetNotFound unless answerID belongs to
// questionID.
func (s *VotingService) CheckAnswerOf(ctx context.Context, questionID, answerID uint) error {
	owner, err := s.store.AnswerQuestionID(ctx, answerID)
	if errors.Is(err, ErrTargetNotFound) {
		return ErrTargetNotFound
	}
	if err != nil {
		return fmt.Errorf("look up answer %d: %w", answerID, err)
	}
	if owner != questionID {
		return ErrTargetNotFound
	}
	return nil
}

// UserVotes returns the caller's vote value per target; targets without a
// vote are absent from the map. Anonymous callers get an empty map.
func (s *VotingService) UserVotes(ctx context.Context, userID uint, targets []models.VoteTarget) (map[models.VoteTarget]int, error) {
	if userID == 0 || len(targets) == 0 {
		return map[models.VoteTarget]int{}, nil
	}
	votes, err := s.store.UserVotes(ctx, userID, targets)
	if err != nil {
		return nil, fmt.Errorf("load votes of user %d: %w", userID, err)
	}
	return votes, nil
}

// AnswerStandings returns every answer of the question with its score and
// acceptance as decided by the configured policy, in creation order.
func (s *VotingService) AnswerStandings(ctx context.Context, questionID uint) ([]AnswerStanding, error) {
	ok, err := s.store.QuestionExists(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("look up question %d: %w", questionID, err)
	}
	if !ok {
		return nil, ErrQuestionNotFound
	}

	standings, err := s.store.AnswerStandings(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load answer scores of question %d: %w", questionID, err)
	}
	s.policy.Mark(standings)
	return standings, nil
}

// ResolveAcceptedAnswer returns the accepted answer's id, or nil.
func (s *VotingService) ResolveAcceptedAnswer(ctx context.Context, questionID uint) (*uint, error) {
	standings, err := s.AnswerStandings(ctx, questionID)
	if err != nil {
		return nil, err
	}
	for _, st := range standings {
		if st.Accepted {
			id := st.AnswerID
			return &id, nil
		}
	}
	return nil, nil
}

func (s *VotingService) requireTarget(ctx context.Context, target models.VoteTarget) error {
	if !target.Valid() {
		return ErrTargetNotFound
	}
	ok, err := s.store.TargetExists(ctx, target)
	if err != nil {
		return fmt.Errorf("look up %s: %w", target, err)
	}
	if !ok {
		return ErrTargetNotFound
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}
