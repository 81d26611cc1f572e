package handlers

import (
	"context"
	"net/http"

	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// VoteService is the part of services.VotingService the vote endpoints use.
type VoteService interface {
	CastVote(ctx context.Context, userID uint, target models.VoteTarget, value int) (services.VoteResult, error)
	GetScore(ctx context.Context, target models.VoteTarget) (int, error)
	CheckAnswerOf(ctx context.Context, questionID, answerID uint) error
}

type VoteHandler struct {
	votes  VoteService
	logger zerolog.Logger
}

func NewVoteHandler(votes VoteService, logger zerolog.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

type voteRequest struct {
	Value int `json:"value"`
}

// VoteQuestion handles POST /api/questions/:id/vote.
func (h *VoteHandler) VoteQuestion(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.cast(c, models.QuestionTarget(questionID))
}

// VoteAnswer handles POST /api/questions/:id/answers/:answerId/vote.
func (h *VoteHandler) VoteAnswer(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	answerID, ok := paramID(c, "answerId")
	if !ok {
		return
	}
	if err := h.votes.CheckAnswerOf(c.Request.Context(), questionID, answerID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.cast(c, models.AnswerTarget(answerID))
}

func (h *VoteHandler) cast(c *gin.Context, target models.VoteTarget) {
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	result, err := h.votes.CastVote(ctx, middleware.CurrentUserID(c), target, req.Value)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	score, err := h.votes.GetScore(ctx, target)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var vote gin.H
	if result.Value != nil {
		vote = gin.H{"value": *result.Value}
	}
	c.JSON(http.StatusOK, gin.H{
		"message": voteMessage(result.Action),
		"action":  result.Action,
		"vote":    vote,
		"score":   score,
	})
}

func voteMessage(action services.VoteAction) string {
	switch action {
	case services.ActionRetracted:
		return "Vote removed"
	case services.ActionUpdated:
		return "Vote updated"
	default:
		return "Vote recorded"
	}
}
