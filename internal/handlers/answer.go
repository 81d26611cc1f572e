package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"codeq/internal/config"
	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"
	"codeq/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type AnswerHandler struct {
	db      *gorm.DB
	policy  services.AcceptancePolicy
	ranking *services.RankingService
	logger  zerolog.Logger
}

func NewAnswerHandler(db *gorm.DB, policy services.AcceptancePolicy, ranking *services.RankingService, logger zerolog.Logger) *AnswerHandler {
	return &AnswerHandler{db: db, policy: policy, ranking: ranking, logger: logger}
}

type answerRequest struct {
	Body string `json:"body" binding:"required,nonblank,min=10,max=30000"`
}

// Create handles POST /api/questions/:id/answers. The question author is
// notified and the answerer earns reputation for the first answers of the day.
func (h *AnswerHandler) Create(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	var req answerRequest
	if !bindJSON(c, &req) {
		return
	}

	var question models.Question
	answer := models.Answer{Body: req.Body, QuestionID: questionID, AuthorID: user.ID}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "title", "author_id").First(&question, questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrQuestionNotFound
			}
			return err
		}
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}

		if question.AuthorID != user.ID {
			notification := models.Notification{
				UserID:     question.AuthorID,
				ActorID:    &user.ID,
				Type:       models.NotificationTypeNewAnswer,
				QuestionID: question.ID,
				Message:    fmt.Sprintf("%s answered your question \"%s\"", user.PublicName(), question.Title),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}

		canEarn, err := services.CanEarnAnswerReputation(tx, user.ID, time.Now())
		if err != nil {
			return err
		}
		if canEarn {
			return services.AddReputation(tx, user.ID, services.ReputationAnswerPosted, services.ActionAnswerPosted)
		}
		return nil
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.ranking.ScheduleUpdate(questionID)

	answer.Author = *user
	c.JSON(http.StatusCreated, answerView{
		Answer:   answer,
		BodyHTML: utils.RenderMarkdown(answer.Body),
	})
}

// Accept handles POST /api/questions/:id/answers/:answerId/accept. The
// question author marks an answer accepted, or clears the mark when it is
// already accepted. Unsetting the old answer and setting the new one happen
// in one transaction.
func (h *AnswerHandler) Accept(c *gin.Context) {
	if h.policy.Name() != config.PolicyExplicit {
		jsonError(c, http.StatusConflict, "accepted answers are derived from votes under the current policy")
		return
	}
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	answerID, ok := paramID(c, "answerId")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var accepted bool
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.Select("id", "title", "author_id").First(&question, questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrQuestionNotFound
			}
			return err
		}
		if question.AuthorID != user.ID {
			return errNotQuestionAuthor
		}

		var answer models.Answer
		err := tx.Where("id = ? AND question_id = ?", answerID, questionID).First(&answer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrTargetNotFound
		}
		if err != nil {
			return err
		}

		if answer.IsAccepted {
			if err := tx.Model(&answer).UpdateColumn("is_accepted", false).Error; err != nil {
				return err
			}
			accepted = false
			return h.adjustReputation(tx, answer.AuthorID, user.ID, services.ReputationAnswerUnaccepted, services.ActionAnswerUnaccepted)
		}

		var previous []models.Answer
		if err := tx.Where("question_id = ? AND is_accepted", questionID).Find(&previous).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND is_accepted", questionID).
			UpdateColumn("is_accepted", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&answer).UpdateColumn("is_accepted", true).Error; err != nil {
			return err
		}
		accepted = true

		for _, p := range previous {
			if err := h.adjustReputation(tx, p.AuthorID, user.ID, services.ReputationAnswerUnaccepted, services.ActionAnswerUnaccepted); err != nil {
				return err
			}
		}
		if err := h.adjustReputation(tx, answer.AuthorID, user.ID, services.ReputationAnswerAccepted, services.ActionAnswerAccepted); err != nil {
			return err
		}

		if answer.AuthorID != user.ID {
			notification := models.Notification{
				UserID:     answer.AuthorID,
				ActorID:    &user.ID,
				Type:       models.NotificationTypeAnswerAccepted,
				QuestionID: question.ID,
				Message:    fmt.Sprintf("%s accepted your answer to \"%s\"", user.PublicName(), question.Title),
			}
			return tx.Create(&notification).Error
		}
		return nil
	})
	if errors.Is(err, errNotQuestionAuthor) {
		jsonError(c, http.StatusForbidden, "only the question author can accept an answer")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().
		Uint("question_id", questionID).
		Uint("answer_id", answerID).
		Bool("accepted", accepted).
		Msg("answer acceptance changed")

	var acceptedID *uint
	message := "Answer unaccepted"
	if accepted {
		acceptedID = &answerID
		message = "Answer accepted"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          message,
		"accepted":         accepted,
		"acceptedAnswerId": acceptedID,
	})
}

var errNotQuestionAuthor = errors.New("not the question author")

// adjustReputation skips self-accepted answers.
func (h *AnswerHandler) adjustReputation(tx *gorm.DB, answerAuthorID, questionAuthorID uint, amount int, action string) error {
	if answerAuthorID == questionAuthorID {
		return nil
	}
	return services.AddReputation(tx, answerAuthorID, amount, action)
}
