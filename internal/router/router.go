package router

import (
	"codeq/internal/handlers"
	"codeq/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every endpoint group mounted under /api.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Questions    *handlers.QuestionHandler
	Answers      *handlers.AnswerHandler
	Votes        *handlers.VoteHandler
	Saved        *handlers.SavedHandler
	Users        *handlers.UserHandler
	Tags         *handlers.TagHandler
	Notification *handlers.NotificationHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")

	// Public routes
	api.GET("/questions", h.Questions.List)
	api.GET("/questions/:id", h.Questions.Detail)
	api.GET("/tags", h.Tags.List)
	api.GET("/users/:id", h.Users.Profile)
	api.GET("/users/:id/saved", h.Users.UserSaved)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/google/login", h.Auth.GoogleLogin)
		auth.GET("/google/callback", h.Auth.GoogleCallback)
	}

	// Protected routes
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/users/sync", h.Auth.Sync)
		authorized.GET("/users/me", h.Users.Me)
		authorized.PUT("/users/me", h.Users.UpdateMe)
		authorized.GET("/users/me/saved", h.Users.MySaved)

		authorized.POST("/questions", h.Questions.Create)
		authorized.PUT("/questions/:id", h.Questions.Update)
		authorized.DELETE("/questions/:id", h.Questions.Delete)
		authorized.POST("/questions/:id/vote", h.Votes.VoteQuestion)
		authorized.POST("/questions/:id/save", h.Saved.Toggle)

		authorized.POST("/questions/:id/answers", h.Answers.Create)
		authorized.POST("/questions/:id/answers/:answerId/vote", h.Votes.VoteAnswer)
		authorized.POST("/questions/:id/answers/:answerId/accept", h.Answers.Accept)

		authorized.GET("/notifications", h.Notification.List)
		authorized.POST("/notifications/read-all", h.Notification.ReadAll)
		authorized.POST("/notifications/:id/read", h.Notification.Read)
		authorized.DELETE("/notifications/:id", h.Notification.Delete)
	}
}
