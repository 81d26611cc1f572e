package handlers

import (
	"errors"
	"net/http"

	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"
	"codeq/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type UserHandler struct {
	db        *gorm.DB
	questions *QuestionHandler
	logger    zerolog.Logger
}

func NewUserHandler(db *gorm.DB, questions *QuestionHandler, logger zerolog.Logger) *UserHandler {
	return &UserHandler{db: db, questions: questions, logger: logger}
}

// meView is the caller's own account, the only place the email is shown.
func meView(user *models.User) gin.H {
	level, badge := utils.GetUserLevel(user.Reputation)
	return gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"displayName": user.PublicName(),
		"avatarUrl":   user.AvatarURL,
		"bio":         user.Bio,
		"reputation":  user.Reputation,
		"level":       level,
		"badge":       badge,
		"hasPassword": user.Password != "",
		"createdAt":   user.CreatedAt,
	}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var unread int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&unread).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": meView(user), "unreadNotifications": unread})
}

type profileRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,nonblank,max=50"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
	AvatarURL   *string `json:"avatarUrl" binding:"omitempty,url,max=500"`
}

// UpdateMe handles PUT /api/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}

	updates := map[string]any{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
		user.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
		user.AvatarURL = *req.AvatarURL
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
			Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": meView(user)})
}

// Profile handles GET /api/users/:id.
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	conn := h.db.WithContext(ctx)

	var user models.User
	err := conn.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, h.logger, services.ErrUserNotFound)
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var questionCount, answerCount, acceptedCount int64
	counts := []*gorm.DB{
		conn.Model(&models.Question{}).Where("author_id = ?", user.ID).Count(&questionCount),
		conn.Model(&models.Answer{}).Where("author_id = ?", user.ID).Count(&answerCount),
		conn.Model(&models.Answer{}).Where("author_id = ? AND is_accepted", user.ID).Count(&acceptedCount),
	}
	for _, q := range counts {
		if q.Error != nil {
			respondError(c, h.logger, q.Error)
			return
		}
	}

	var recent []models.Question
	if err := conn.Preload("Author").Preload("Tags").
		Where("author_id = ?", user.ID).
		Order("created_at DESC").
		Limit(10).
		Find(&recent).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.questions.fillCounts(ctx, recent); err != nil {
		respondError(c, h.logger, err)
		return
	}

	level, badge := utils.GetUserLevel(user.Reputation)
	c.JSON(http.StatusOK, gin.H{
		"user":  user,
		"level": level,
		"badge": badge,
		"stats": gin.H{
			"questions":       questionCount,
			"answers":         answerCount,
			"acceptedAnswers": acceptedCount,
			"daysSinceJoined": utils.GetDaysSinceJoined(user.CreatedAt),
		},
		"recentQuestions": recent,
	})
}

// MySaved handles GET /api/users/me/saved.
func (h *UserHandler) MySaved(c *gin.Context) {
	h.savedOf(c, middleware.CurrentUserID(c))
}

// UserSaved handles GET /api/users/:id/saved.
func (h *UserHandler) UserSaved(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.savedOf(c, userID)
}

func (h *UserHandler) savedOf(c *gin.Context, userID uint) {
	ctx := c.Request.Context()
	page, limit := pageParams(c)
	query := h.db.WithContext(ctx).Model(&models.SavedQuestion{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	var saved []models.SavedQuestion
	if err := query.Preload("Question").Preload("Question.Author").Preload("Question.Tags").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&saved).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	questions := make([]models.Question, len(saved))
	for i, s := range saved {
		questions[i] = s.Question
	}
	if err := h.questions.fillCounts(ctx, questions); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"questions":  questions,
		"pagination": newPagination(page, limit, total),
	})
}
