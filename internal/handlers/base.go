package handlers

import (
	"errors"
	"net/http"

	"codeq/internal/services"
	"codeq/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

func jsonError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// respondError maps service errors onto HTTP responses. Anything unknown is
// logged and reported as a generic failure.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		jsonError(c, http.StatusUnauthorized, "login required")
	case errors.Is(err, services.ErrUserNotFound):
		jsonError(c, http.StatusNotFound, "user not found")
	case errors.Is(err, services.ErrTargetNotFound):
		jsonError(c, http.StatusNotFound, "target not found")
	case errors.Is(err, services.ErrQuestionNotFound):
		jsonError(c, http.StatusNotFound, "question not found")
	case errors.Is(err, services.ErrInvalidValue):
		jsonError(c, http.StatusBadRequest, "value must be 1 or -1")
	default:
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		jsonError(c, http.StatusInternalServerError, "internal server error")
	}
}

// bindJSON binds and validates the request body, answering 400 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		jsonError(c, http.StatusBadRequest, utils.ValidationMessage(err))
		return false
	}
	return true
}

// paramID reads a positive id path parameter, answering 400 when malformed.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
	}
	return id, ok
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func pageParams(c *gin.Context) (page, limit int) {
	page = utils.Clamp(utils.StringToInt(c.Query("page")), 1, 1, 1<<20)
	limit = utils.Clamp(utils.StringToInt(c.Query("limit")), defaultPageSize, 1, maxPageSize)
	return page, limit
}

func newPagination(page, limit int, total int64) pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages == 0 {
		pages = 1
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
