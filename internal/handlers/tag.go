package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"codeq/internal/models"
	"codeq/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const tagCacheTTL = 5 * time.Minute

const allTagsKey = "tags:all"

// TagCatalog serves the tag list with question counts from a short-lived
// cache. Vote scores are never cached here or anywhere else.
type TagCatalog struct {
	db    *gorm.DB
	cache *utils.TTLCache[[]models.Tag]
}

func NewTagCatalog(db *gorm.DB) (*TagCatalog, error) {
	cache, err := utils.NewTTLCache[[]models.Tag](16, tagCacheTTL)
	if err != nil {
		return nil, err
	}
	return &TagCatalog{db: db, cache: cache}, nil
}

// All returns every tag ordered by question count, then name.
func (t *TagCatalog) All(ctx context.Context) ([]models.Tag, error) {
	if tags, ok := t.cache.Get(allTagsKey); ok {
		return tags, nil
	}

	var tags []models.Tag
	err := t.db.WithContext(ctx).
		Model(&models.Tag{}).
		Select("tags.*, COUNT(question_tags.question_id) AS question_count").
		Joins("LEFT JOIN question_tags ON question_tags.tag_id = tags.id").
		Group("tags.id").
		Order("question_count DESC, tags.name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, err
	}
	t.cache.Set(allTagsKey, tags)
	return tags, nil
}

// Invalidate drops the cached list after tags or their questions change.
// Safe on a nil catalog.
func (t *TagCatalog) Invalidate() {
	if t == nil {
		return
	}
	t.cache.Purge()
}

type TagHandler struct {
	catalog *TagCatalog
	logger  zerolog.Logger
}

func NewTagHandler(catalog *TagCatalog, logger zerolog.Logger) *TagHandler {
	return &TagHandler{catalog: catalog, logger: logger}
}

// List handles GET /api/tags?search&limit.
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.catalog.All(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	limit := utils.Clamp(utils.StringToInt(c.Query("limit")), len(tags), 1, len(tags))

	result := make([]models.Tag, 0, limit)
	for _, tag := range tags {
		if len(result) >= limit {
			break
		}
		if search != "" && !strings.Contains(strings.ToLower(tag.Name), search) {
			continue
		}
		result = append(result, tag)
	}
	c.JSON(http.StatusOK, gin.H{"tags": result})
}
