package handlers

import (
	"net/http"

	"codeq/internal/middleware"
	"codeq/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewNotificationHandler(db *gorm.DB, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, logger: logger}
}

// List handles GET /api/notifications. ?unread=true limits to unread ones.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	page, limit := pageParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	var notifications []models.Notification
	if err := query.Preload("Actor").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&notifications).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"pagination":    newPagination(page, limit, total),
	})
}

// Read handles POST /api/notifications/:id/read.
func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, h.logger, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusNotFound, "notification not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// ReadAll handles POST /api/notifications/read-all.
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", middleware.CurrentUserID(c), false).
		Update("is_read", true)
	if res.Error != nil {
		respondError(c, h.logger, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
}

// Delete handles DELETE /api/notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).
		Delete(&models.Notification{})
	if res.Error != nil {
		respondError(c, h.logger, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		jsonError(c, http.StatusNotFound, "notification not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
