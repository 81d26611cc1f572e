package services

import (
	"context"
	"sync"
	"time"

	"codeq/internal/metrics"
	"codeq/internal/models"
	"codeq/internal/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	rankingBatchSize = 50
	rankingFlush     = 500 * time.Millisecond
)

// RankingService recomputes questions.hot_rank in the background. Updates for
// the same question are coalesced while queued.
type RankingService struct {
	db      *gorm.DB
	logger  zerolog.Logger
	queue   chan uint
	pending map[uint]bool
	mu      sync.Mutex
	now     func() time.Time
}

func NewRankingService(db *gorm.DB, logger zerolog.Logger) *RankingService {
	return &RankingService{
		db:      db,
		logger:  logger.With().Str("component", "ranking").Logger(),
		queue:   make(chan uint, 1000),
		pending: make(map[uint]bool),
		now:     time.Now,
	}
}

// Start runs the queue worker and the nightly refresh until ctx is done.
func (s *RankingService) Start(ctx context.Context) {
	go s.worker(ctx)
	go s.nightly(ctx)
}

// ScheduleUpdate queues questionID without blocking. Nil receivers are
// ignored so handlers can run without a ranking service.
func (s *RankingService) ScheduleUpdate(questionID uint) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.pending[questionID] {
		s.mu.Unlock()
		return
	}
	s.pending[questionID] = true
	s.mu.Unlock()

	select {
	case s.queue <- questionID:
	default:
		s.mu.Lock()
		delete(s.pending, questionID)
		s.mu.Unlock()
		metrics.RankingQueueDropped.Inc()
		s.logger.Warn().Uint("question_id", questionID).Msg("ranking queue full, update skipped")
	}
}

func (s *RankingService) worker(ctx context.Context) {
	batch := make([]uint, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, ids []uint) {
	for _, id := range ids {
		if err := s.UpdateQuestionRank(ctx, id); err != nil {
			s.logger.Error().Err(err).Uint("question_id", id).Msg("hot rank update failed")
		}
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

// UpdateQuestionRank recomputes and stores one question's hot rank.
func (s *RankingService) UpdateQuestionRank(ctx context.Context, questionID uint) error {
	conn := s.db.WithContext(ctx)

	var question models.Question
	if err := conn.Select("id", "created_at", "view_count").First(&question, questionID).Error; err != nil {
		return err
	}

	var tally struct {
		Up   int
		Down int
	}
	err := conn.Model(&models.Vote{}).
		Select("COUNT(*) FILTER (WHERE value = 1) AS up, COUNT(*) FILTER (WHERE value = -1) AS down").
		Where("question_id = ?", questionID).
		Scan(&tally).Error
	if err != nil {
		return err
	}

	var answers, saves int64
	if err := conn.Model(&models.Answer{}).Where("question_id = ?", questionID).Count(&answers).Error; err != nil {
		return err
	}
	if err := conn.Model(&models.SavedQuestion{}).Where("question_id = ?", questionID).Count(&saves).Error; err != nil {
		return err
	}

	rank := utils.CalculateScore(utils.RankInput{
		CreatedAt: question.CreatedAt,
		Upvotes:   tally.Up,
		Downvotes: tally.Down,
		Answers:   int(answers),
		Saves:     int(saves),
		Views:     question.ViewCount,
	}, s.now())

	return conn.Model(&models.Question{}).
		Where("id = ?", questionID).
		UpdateColumn("hot_rank", rank).Error
}

// nightly refreshes ranks at 03:00 local time, when decay has moved every
// recent question.
func (s *RankingService) nightly(ctx context.Context) {
	for {
		now := s.now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.logger.Info().Msg("nightly hot rank refresh started")
		count := s.RefreshHot(ctx)
		s.logger.Info().Int("count", count).Msg("nightly hot rank refresh finished")
	}
}

// RefreshHot updates questions from the last 7 days plus the current top 30.
func (s *RankingService) RefreshHot(ctx context.Context) int {
	processed := make(map[uint]bool)
	conn := s.db.WithContext(ctx)

	var recent []uint
	if err := conn.Model(&models.Question{}).
		Where("created_at >= ?", s.now().AddDate(0, 0, -7)).
		Pluck("id", &recent).Error; err != nil {
		s.logger.Error().Err(err).Msg("load recent questions for hot rank failed")
	}

	var top []uint
	if err := conn.Model(&models.Question{}).
		Order("hot_rank DESC").
		Limit(30).
		Pluck("id", &top).Error; err != nil {
		s.logger.Error().Err(err).Msg("load top questions for hot rank failed")
	}

	for _, id := range append(recent, top...) {
		if processed[id] {
			continue
		}
		processed[id] = true
		if err := s.UpdateQuestionRank(ctx, id); err != nil {
			s.logger.Error().Err(err).Uint("question_id", id).Msg("hot rank update failed")
		}
	}
	return len(processed)
}
