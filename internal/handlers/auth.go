package handlers

import (
	"errors"
	"net/http"
	"strings"

	"codeq/internal/identity"
	"codeq/internal/middleware"
	"codeq/internal/models"
	"codeq/internal/services"
	"codeq/internal/store"
	"codeq/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const oauthStateKey = "oauth_state"

type AuthHandler struct {
	db        *gorm.DB
	directory *services.UserDirectory
	google    *identity.GoogleProvider
	siteURL   string
	logger    zerolog.Logger
}

// NewAuthHandler builds the auth endpoints. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(db *gorm.DB, directory *services.UserDirectory, google *identity.GoogleProvider, siteURL string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{db: db, directory: directory, google: google, siteURL: siteURL, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=191"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"omitempty,nonblank,max=50"`
}

// Register handles POST /api/auth/register and signs the new user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	user := models.User{
		ExternalID:  identity.LocalSubject(email),
		Email:       email,
		Name:        name,
		DisplayName: name,
		Password:    hash,
	}
	err = h.db.WithContext(c.Request.Context()).Create(&user).Error
	if store.IsUniqueViolation(err) {
		jsonError(c, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !h.signIn(c, &user) {
		return
	}
	h.logger.Info().Uint("user_id", user.ID).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"message": "Registered", "user": meView(&user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login for password accounts.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, h.logger, err)
		return
	}
	if err != nil || user.Password == "" || !utils.CheckPasswordHash(req.Password, user.Password) {
		jsonError(c, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if !h.signIn(c, &user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged in", "user": meView(&user)})
}

// signIn stores the user's current subject so the next request resolves to
// the same account even if it was linked to Google since.
func (h *AuthHandler) signIn(c *gin.Context, user *models.User) bool {
	err := identity.SignIn(c, &identity.Identity{
		Subject:   user.ExternalID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return false
	}
	return true
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := identity.SignOut(c); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GoogleLogin handles GET /api/auth/google/login.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		jsonError(c, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.google.AuthCodeURL(state))
}

// GoogleCallback handles GET /api/auth/google/callback.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		jsonError(c, http.StatusNotFound, "google sign-in is not configured")
		return
	}

	session := sessions.Default(c)
	expected, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	if expected == "" || c.Query("state") != expected {
		jsonError(c, http.StatusBadRequest, "invalid oauth state")
		return
	}
	code := c.Query("code")
	if code == "" {
		jsonError(c, http.StatusBadRequest, "missing authorization code")
		return
	}

	id, err := h.google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn().Err(err).Msg("google sign-in failed")
		jsonError(c, http.StatusUnauthorized, "google sign-in failed")
		return
	}
	user, err := h.directory.EnsureUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := identity.SignIn(c, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Uint("user_id", user.ID).Msg("google sign-in")
	c.Redirect(http.StatusFound, h.siteURL+"/")
}

// Sync handles POST /api/users/sync: it resolves the caller's identity to an
// internal user, creating the user if needed, and returns it.
func (h *AuthHandler) Sync(c *gin.Context) {
	v, exists := c.Get(middleware.IdentityKey)
	id, _ := v.(*identity.Identity)
	if !exists || id == nil {
		respondError(c, h.logger, services.ErrUnauthenticated)
		return
	}
	user, err := h.directory.EnsureUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": meView(user)})
}
