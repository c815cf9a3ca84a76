package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studyhub/internal/middleware"
)

type RouterDeps struct {
	Auth        *AuthHandler
	Tokens      middleware.TokenParser
	RateLimiter *middleware.RateLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", Health)
	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	auth := api.Group("/auth")
	if deps.RateLimiter != nil {
		auth.Use(deps.RateLimiter.Handler())
	}
	auth.POST("/signup", deps.Auth.Signup)
	auth.POST("/login", deps.Auth.Login)
	auth.POST("/send-otp", deps.Auth.SendOTP)

	authed := auth.Group("")
	authed.Use(middleware.JWTAuth(deps.Tokens))
	authed.PUT("/change-password", deps.Auth.ChangePassword)
	authed.POST("/logout", deps.Auth.Logout)
}
