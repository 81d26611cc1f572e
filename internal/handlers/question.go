package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"
	"codeq/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ScoreReader is what question pages read from the voting service.
type ScoreReader interface {
	GetScore(ctx context.Context, target models.VoteTarget) (int, error)
	Scores(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error)
	UserVotes(ctx context.Context, userID uint, targets []models.VoteTarget) (map[models.VoteTarget]int, error)
	AnswerStandings(ctx context.Context, questionID uint) ([]services.AnswerStanding, error)
}

type QuestionHandler struct {
	db      *gorm.DB
	scores  ScoreReader
	ranking *services.RankingService
	tags    *TagCatalog
	logger  zerolog.Logger
}

func NewQuestionHandler(db *gorm.DB, scores ScoreReader, ranking *services.RankingService, tags *TagCatalog, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{db: db, scores: scores, ranking: ranking, tags: tags, logger: logger}
}

type questionView struct {
	models.Question
	BodyHTML         string       `json:"bodyHtml"`
	UserVote         *int         `json:"userVote"`
	IsSaved          bool         `json:"isSaved"`
	AcceptedAnswerID *uint        `json:"acceptedAnswerId"`
	Answers          []answerView `json:"answers"`
}

type answerView struct {
	models.Answer
	BodyHTML   string `json:"bodyHtml"`
	VoteScore  int    `json:"voteScore"`
	UserVote   *int   `json:"userVote"`
	IsAccepted bool   `json:"isAccepted"`
}

type questionSummary struct {
	models.Question
	Excerpt string `json:"excerpt"`
}

// List handles GET /api/questions.
func (h *QuestionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	page, limit := pageParams(c)

	query := h.db.WithContext(ctx).Model(&models.Question{})
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		tagged := h.db.Table("question_tags").
			Select("question_tags.question_id").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("LOWER(tags.name) = LOWER(?)", tag)
		query = query.Where("questions.id IN (?)", tagged)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("questions.title ILIKE ? OR questions.body ILIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	switch c.DefaultQuery("sort", "newest") {
	case "popular":
		query = query.Order("(SELECT COALESCE(SUM(votes.value), 0) FROM votes WHERE votes.question_id = questions.id) DESC")
	case "hot":
		query = query.Order("questions.hot_rank DESC")
	}

	var questions []models.Question
	err := query.Preload("Author").Preload("Tags").
		Order("questions.created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&questions).Error
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.fillCounts(ctx, questions); err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]questionSummary, len(questions))
	for i, q := range questions {
		items[i] = questionSummary{Question: q, Excerpt: utils.StripMarkdown(q.Body, 200)}
	}
	c.JSON(http.StatusOK, gin.H{
		"questions":  items,
		"pagination": newPagination(page, limit, total),
	})
}

// fillCounts sets VoteScore and AnswerCount on a page of questions.
func (h *QuestionHandler) fillCounts(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]uint, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	scores, err := h.scores.Scores(ctx, models.TargetQuestion, ids)
	if err != nil {
		return err
	}

	var counts []struct {
		QuestionID uint
		Count      int
	}
	err = h.db.WithContext(ctx).Model(&models.Answer{}).
		Select("question_id, COUNT(*) AS count").
		Where("question_id IN ?", ids).
		Group("question_id").
		Scan(&counts).Error
	if err != nil {
		return err
	}
	countMap := make(map[uint]int, len(counts))
	for _, r := range counts {
		countMap[r.QuestionID] = r.Count
	}

	for i := range questions {
		questions[i].VoteScore = scores[questions[i].ID]
		questions[i].AnswerCount = countMap[questions[i].ID]
	}
	return nil
}

type questionRequest struct {
	Title string   `json:"title" binding:"required,nonblank,min=10,max=200"`
	Body  string   `json:"body" binding:"required,nonblank,min=20,max=30000"`
	Tags  []string `json:"tags" binding:"max=5,dive,tagname"`
}

// Create handles POST /api/questions.
func (h *QuestionHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req questionRequest
	if !bindJSON(c, &req) {
		return
	}

	question := models.Question{
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		AuthorID: user.ID,
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		tags, err := connectTags(tx, req.Tags)
		if err != nil {
			return err
		}
		question.Tags = tags
		return tx.Create(&question).Error
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.tags.Invalidate()
	h.ranking.ScheduleUpdate(question.ID)

	question.Author = *user
	h.logger.Info().Uint("question_id", question.ID).Uint("user_id", user.ID).Msg("question created")
	c.JSON(http.StatusCreated, questionView{
		Question: question,
		BodyHTML: utils.RenderMarkdown(question.Body),
		Answers:  []answerView{},
	})
}

// connectTags finds or creates each named tag. Names are matched
// case-insensitively and deduplicated.
func connectTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	seen := make(map[string]bool)
	var tags []models.Tag
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true

		var tag models.Tag
		err := tx.Where("LOWER(name) = ?", key).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Detail handles GET /api/questions/:id. It bumps the view counter and
// returns scores, the caller's votes, and the accepted answer.
func (h *QuestionHandler) Detail(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	conn := h.db.WithContext(ctx)

	var question models.Question
	err := conn.Preload("Author").Preload("Tags").First(&question, questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, h.logger, services.ErrQuestionNotFound)
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := conn.Model(&models.Question{}).Where("id = ?", questionID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		h.logger.Warn().Err(err).Uint("question_id", questionID).Msg("view count update failed")
	} else {
		question.ViewCount++
	}
	h.ranking.ScheduleUpdate(questionID)

	var answers []models.Answer
	if err := conn.Preload("Author").Where("question_id = ?", questionID).
		Order("created_at ASC, id ASC").Find(&answers).Error; err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.buildView(ctx, middleware.CurrentUserID(c), question, answers)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *QuestionHandler) buildView(ctx context.Context, userID uint, question models.Question, answers []models.Answer) (*questionView, error) {
	score, err := h.scores.GetScore(ctx, models.QuestionTarget(question.ID))
	if err != nil {
		return nil, err
	}
	question.VoteScore = score
	question.AnswerCount = len(answers)

	standings, err := h.scores.AnswerStandings(ctx, question.ID)
	if err != nil {
		return nil, err
	}
	byAnswer := make(map[uint]services.AnswerStanding, len(standings))
	for _, s := range standings {
		byAnswer[s.AnswerID] = s
	}

	targets := []models.VoteTarget{models.QuestionTarget(question.ID)}
	for _, a := range answers {
		targets = append(targets, models.AnswerTarget(a.ID))
	}
	votes, err := h.scores.UserVotes(ctx, userID, targets)
	if err != nil {
		return nil, err
	}

	view := &questionView{
		Question: question,
		BodyHTML: utils.RenderMarkdown(question.Body),
		UserVote: voteOf(votes, models.QuestionTarget(question.ID)),
		Answers:  make([]answerView, 0, len(answers)),
	}
	if userID != 0 {
		var saved int64
		if err := h.db.WithContext(ctx).Model(&models.SavedQuestion{}).
			Where("user_id = ? AND question_id = ?", userID, question.ID).
			Count(&saved).Error; err != nil {
			return nil, err
		}
		view.IsSaved = saved > 0
	}

	for _, a := range answers {
		standing := byAnswer[a.ID]
		if standing.Accepted {
			id := a.ID
			view.AcceptedAnswerID = &id
		}
		view.Answers = append(view.Answers, answerView{
			Answer:     a,
			BodyHTML:   utils.RenderMarkdown(a.Body),
			VoteScore:  standing.Score,
			UserVote:   voteOf(votes, models.AnswerTarget(a.ID)),
			IsAccepted: standing.Accepted,
		})
	}
	// Accepted answer first, the rest in creation order.
	sort.SliceStable(view.Answers, func(i, j int) bool {
		return view.Answers[i].IsAccepted && !view.Answers[j].IsAccepted
	})
	return view, nil
}

func voteOf(votes map[models.VoteTarget]int, target models.VoteTarget) *int {
	if v, ok := votes[target]; ok {
		return &v
	}
	return nil
}

type questionUpdateRequest struct {
	Title *string   `json:"title" binding:"omitempty,nonblank,min=10,max=200"`
	Body  *string   `json:"body" binding:"omitempty,nonblank,min=20,max=30000"`
	Tags  *[]string `json:"tags" binding:"omitempty,max=5,dive,tagname"`
}

// Update handles PUT /api/questions/:id. Only the author may edit.
func (h *QuestionHandler) Update(c *gin.Context) {
	question, ok := h.ownQuestion(c)
	if !ok {
		return
	}
	var req questionUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if req.Title != nil {
			updates["title"] = strings.TrimSpace(*req.Title)
		}
		if req.Body != nil {
			updates["body"] = *req.Body
		}
		if len(updates) > 0 {
			if err := tx.Model(question).Updates(updates).Error; err != nil {
				return err
			}
			if req.Title != nil {
				question.Title = strings.TrimSpace(*req.Title)
			}
			if req.Body != nil {
				question.Body = *req.Body
			}
		}
		if req.Tags != nil {
			tags, err := connectTags(tx, *req.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(question).Association("Tags").Replace(tags); err != nil {
				return err
			}
			question.Tags = tags
		}
		return nil
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.Tags != nil {
		h.tags.Invalidate()
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question updated", "question": question})
}

// Delete handles DELETE /api/questions/:id. Votes, saves and notifications
// referencing the question or its answers go with it.
func (h *QuestionHandler) Delete(c *gin.Context) {
	question, ok := h.ownQuestion(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		answerIDs := tx.Model(&models.Answer{}).Select("id").Where("question_id = ?", question.ID)
		steps := []*gorm.DB{
			tx.Where("question_id = ? OR answer_id IN (?)", question.ID, answerIDs).Delete(&models.Vote{}),
			tx.Where("question_id = ?", question.ID).Delete(&models.SavedQuestion{}),
			tx.Where("question_id = ?", question.ID).Delete(&models.Notification{}),
			tx.Where("question_id = ?", question.ID).Delete(&models.Answer{}),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		if err := tx.Model(question).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(question).Error
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.tags.Invalidate()

	h.logger.Info().Uint("question_id", question.ID).Msg("question deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted"})
}

// ownQuestion loads the :id question and checks the caller wrote it.
func (h *QuestionHandler) ownQuestion(c *gin.Context) (*models.Question, bool) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var question models.Question
	err := h.db.WithContext(c.Request.Context()).First(&question, questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, h.logger, services.ErrQuestionNotFound)
		return nil, false
	}
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if question.AuthorID != middleware.CurrentUserID(c) {
		jsonError(c, http.StatusForbidden, "only the author can change this question")
		return nil, false
	}
	return &question, true
}
