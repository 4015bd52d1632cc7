package httpapi

import (
	"errors"
	"net/http"

	"voicecrm/internal/agent"
	"voicecrm/internal/audit"
	"voicecrm/internal/auth"
	"voicecrm/internal/calls"
	"voicecrm/internal/campaigns"
	"voicecrm/internal/contacts"
	"voicecrm/internal/conversations"
	"voicecrm/internal/reporting"
	"voicecrm/internal/speech"
	"voicecrm/internal/store"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Users     *users.Manager
	Contacts  *contacts.Repository
	Campaigns *campaigns.Manager
	Calls     *calls.Repository
	Convos    *conversations.Repository
	Agent     *agent.Agent
	Reports   *reporting.Service
	Audit     *audit.Service

	// SecureCookies mirrors production mode; the access cookie is HTTP-only
	// either way.
	SecureCookies bool
}

// writeError maps domain sentinels onto HTTP statuses in one place so every
// handler fails the same way.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrQuotaExceeded),
		errors.Is(err, agent.ErrConcurrencyCap):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrDuplicateUser),
		errors.Is(err, contacts.ErrPhoneInUse),
		errors.Is(err, calls.ErrBadTransition),
		errors.Is(err, agent.ErrCallFinished):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, speech.ErrExternalService):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "speech service unavailable"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// accountID pulls the authenticated account from request context; the auth
// middleware guarantees it on protected routes.
func accountID(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account required"})
		return "", false
	}
	return uid, true
}

func badJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
}
