package store

import (
	"context"
	"errors"
	"time"

	"codeq/internal/models"
	"codeq/internal/services"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// VoteStore implements services.VoteStore on gorm.
type VoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *VoteStore {
	return &VoteStore{db: db}
}

func (s *VoteStore) UserExists(ctx context.Context, userID uint) (bool, error) {
	return exists(s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID))
}

func (s *VoteStore) QuestionExists(ctx context.Context, questionID uint) (bool, error) {
	return exists(s.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", questionID))
}

func (s *VoteStore) TargetExists(ctx context.Context, target models.VoteTarget) (bool, error) {
	if target.Kind == models.TargetAnswer {
		return exists(s.db.WithContext(ctx).Model(&models.Answer{}).Where("id = ?", target.ID))
	}
	return s.QuestionExists(ctx, target.ID)
}

func (s *VoteStore) FindVote(ctx context.Context, userID uint, target models.VoteTarget) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND "+target.Column()+" = ?", userID, target.ID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (s *VoteStore) InsertVote(ctx context.Context, vote *models.Vote) error {
	err := s.db.WithContext(ctx).Create(vote).Error
	if IsUniqueViolation(err) {
		return services.ErrDuplicateVote
	}
	return err
}

func (s *VoteStore) DeleteVote(ctx context.Context, voteID uint, value int) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND value = ?", voteID, value).
		Delete(&models.Vote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrStaleVote
	}
	return nil
}

func (s *VoteStore) UpdateVoteValue(ctx context.Context, voteID uint, from, to int) error {
	res := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("id = ? AND value = ?", voteID, from).
		UpdateColumn("value", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrStaleVote
	}
	return nil
}

func (s *VoteStore) AnswerQuestionID(ctx context.Context, answerID uint) (uint, error) {
	var answer models.Answer
	err := s.db.WithContext(ctx).Select("id", "question_id").Take(&answer, answerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, services.ErrTargetNotFound
	}
	if err != nil {
		return 0, err
	}
	return answer.QuestionID, nil
}

func (s *VoteStore) SumVotesMany(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error) {
	column := models.VoteTarget{Kind: kind}.Column()
	var rows []struct {
		TargetID uint
		Score    int
	}
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select(column+" AS target_id, SUM(value) AS score").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[uint]int, len(rows))
	for _, r := range rows {
		sums[r.TargetID] = r.Score
	}
	return sums, nil
}

func (s *VoteStore) SumVotes(ctx context.Context, target models.VoteTarget) (int, error) {
	var score int
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("COALESCE(SUM(value), 0)").
		Where(target.Column()+" = ?", target.ID).
		Scan(&score).Error
	return score, err
}

func (s *VoteStore) UserVotes(ctx context.Context, userID uint, targets []models.VoteTarget) (map[models.VoteTarget]int, error) {
	var questionIDs, answerIDs []uint
	for _, t := range targets {
		if t.Kind == models.TargetAnswer {
			answerIDs = append(answerIDs, t.ID)
		} else {
			questionIDs = append(questionIDs, t.ID)
		}
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	switch {
	case len(questionIDs) > 0 && len(answerIDs) > 0:
		query = query.Where(s.db.Where("question_id IN ?", questionIDs).Or("answer_id IN ?", answerIDs))
	case len(questionIDs) > 0:
		query = query.Where("question_id IN ?", questionIDs)
	case len(answerIDs) > 0:
		query = query.Where("answer_id IN ?", answerIDs)
	default:
		return map[models.VoteTarget]int{}, nil
	}

	var votes []models.Vote
	if err := query.Find(&votes).Error; err != nil {
		return nil, err
	}
	result := make(map[models.VoteTarget]int, len(votes))
	for _, v := range votes {
		result[v.Target()] = v.Value
	}
	return result, nil
}

func (s *VoteStore) AnswerStandings(ctx context.Context, questionID uint) ([]services.AnswerStanding, error) {
	type row struct {
		AnswerID   uint
		CreatedAt  time.Time
		IsAccepted bool
		Score      int
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("answers").
		Select("answers.id AS answer_id, answers.created_at, answers.is_accepted, COALESCE(SUM(votes.value), 0) AS score").
		Joins("LEFT JOIN votes ON votes.answer_id = answers.id").
		Where("answers.question_id = ?", questionID).
		Group("answers.id, answers.created_at, answers.is_accepted").
		Order("answers.created_at ASC, answers.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	standings := make([]services.AnswerStanding, len(rows))
	for i, r := range rows {
		standings[i] = services.AnswerStanding{
			AnswerID:  r.AnswerID,
			CreatedAt: r.CreatedAt,
			Score:     r.Score,
			Flagged:   r.IsAccepted,
		}
	}
	return standings, nil
}

// IsUniqueViolation recognises duplicate-key errors whether or not gorm
// translated them.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func exists(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
