package main

import (
	"voicecrm/internal/httpapi"
	"voicecrm/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireAccount())
	{
		profile := v1.Group("/profile")
		{
			profile.GET("", h.GetProfile)
			profile.PATCH("", rbac.RequireAnyRole(rbac.RoleOwner), h.UpdateProfile)
			profile.POST("/apikey", rbac.RequireAnyRole(rbac.RoleOwner), h.RotateAPIKey)
		}

		v1.GET("/dashboard", h.Dashboard)
		v1.GET("/usage", h.Usage)

		anyRole := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleReadOnly)
		writeRole := rbac.RequireAnyRole(rbac.RoleOwner)

		contacts := v1.Group("/contacts")
		{
			contacts.GET("", anyRole, h.ListContacts)
			contacts.POST("", writeRole, h.CreateContact)
			contacts.GET("/:id", anyRole, h.GetContact)
			contacts.PATCH("/:id", writeRole, h.UpdateContact)
			contacts.DELETE("/:id", writeRole, h.DeleteContact)
		}

		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", anyRole, h.ListCampaigns)
			campaigns.POST("", writeRole, h.CreateCampaign)
			campaigns.GET("/:id", anyRole, h.GetCampaign)
			campaigns.PATCH("/:id/active", writeRole, h.SetCampaignActive)
			campaigns.GET("/:id/script", anyRole, h.GetCampaignScript)
			campaigns.GET("/:id/stats", anyRole, h.GetCampaignStats)
		}

		calls := v1.Group("/calls")
		{
			calls.POST("/start", writeRole, h.StartCall)
			calls.POST("/process", writeRole, h.ProcessTurn)
			calls.POST("/end", writeRole, h.EndCall)
			calls.GET("/status", anyRole, h.CallStatus)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.GET("/:id", anyRole, h.GetConversation)
			conversations.GET("/:id/summary", anyRole, h.ConversationSummary)
		}

		// Account data erasure is owner-only and irreversible.
		v1.DELETE("/account/data", rbac.RequireAnyRole(rbac.RoleOwner), h.EraseAccountData)
	}
}
