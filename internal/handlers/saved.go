package handlers

import (
	"net/http"

	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"
	"codeq/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type SavedHandler struct {
	db      *gorm.DB
	ranking *services.RankingService
	logger  zerolog.Logger
}

func NewSavedHandler(db *gorm.DB, ranking *services.RankingService, logger zerolog.Logger) *SavedHandler {
	return &SavedHandler{db: db, ranking: ranking, logger: logger}
}

// Toggle handles POST /api/questions/:id/save: saves the question, or
// removes it when already saved.
func (h *SavedHandler) Toggle(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID := middleware.CurrentUserID(c)
	conn := h.db.WithContext(c.Request.Context())

	var count int64
	if err := conn.Model(&models.Question{}).Where("id = ?", questionID).Count(&count).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}
	if count == 0 {
		respondError(c, h.logger, services.ErrQuestionNotFound)
		return
	}

	saved := true
	res := conn.Where("user_id = ? AND question_id = ?", userID, questionID).Delete(&models.SavedQuestion{})
	if res.Error != nil {
		respondError(c, h.logger, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		saved = false
	} else {
		err := conn.Create(&models.SavedQuestion{UserID: userID, QuestionID: questionID}).Error
		// A concurrent save already created the row.
		if err != nil && !store.IsUniqueViolation(err) {
			respondError(c, h.logger, err)
			return
		}
	}
	h.ranking.ScheduleUpdate(questionID)

	message := "Question saved"
	if !saved {
		message = "Question removed from saved"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "saved": saved})
}
