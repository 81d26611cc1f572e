package middleware

import (
	"net/http"

	"codeq/internal/identity"
	"codeq/internal/models"
	"codeq/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const CheckUserKey = "user"
const IdentityKey = "identity"

// unresolvedKey marks an identified caller whose user record could not be
// found or created.
const unresolvedKey = "user_unresolved"

// AuthRequired rejects requests without a resolved user: 401 when nobody is
// signed in, 404 when the signed-in identity has no usable account.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); exists {
			c.Next()
			return
		}
		if c.GetBool(unresolvedKey) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
	}
}

// LoadUser identifies the caller and resolves the internal user, creating it
// on first sight. Anonymous requests pass through untouched.
func LoadUser(provider identity.Provider, directory *services.UserDirectory, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := provider.Identify(c)
		if err != nil {
			c.Next()
			return
		}
		c.Set(IdentityKey, id)

		user, err := directory.EnsureUser(c.Request.Context(), id)
		if err != nil {
			logger.Error().Err(err).Str("subject", id.Subject).Msg("resolve user failed")
			c.Set(unresolvedKey, true)
			c.Next()
			return
		}
		c.Set(CheckUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the acting user, or nil for anonymous callers.
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(CheckUserKey); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID is 0 for anonymous callers.
func CurrentUserID(c *gin.Context) uint {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}
