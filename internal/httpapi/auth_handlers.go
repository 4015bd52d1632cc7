package httpapi

import (
	"context"
	"net/http"
	"time"

	"voicecrm/internal/audit"
	"voicecrm/internal/auth"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	u, err := h.Users.Register(users.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.logAuth(c, audit.EventTypeRegister, u.ID, "account registered")

	pair, err := h.issueSession(c, u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         publicUser(u),
		"access_token": pair.AccessToken,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	u, err := h.Users.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logAuth(c, audit.EventTypeLoginFailed, req.Email, "login rejected")
		writeError(c, err)
		return
	}
	h.logAuth(c, audit.EventTypeLogin, u.ID, "login ok")

	pair, err := h.issueSession(c, u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         publicUser(u),
		"access_token": pair.AccessToken,
	})
}

func (h Handlers) Logout(c *gin.Context) {
	c.SetCookie(auth.AccessCookie, "", -1, "/", "", h.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// issueSession returns a token pair and sets the HTTP-only access cookie so
// browser and API clients share one login path.
func (h Handlers) issueSession(c *gin.Context, u users.User) (auth.TokenPair, error) {
	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Role)
	if err != nil {
		return auth.TokenPair{}, err
	}
	maxAge := int(h.Auth.AccessTTL() / time.Second)
	c.SetCookie(auth.AccessCookie, pair.AccessToken, maxAge, "/", "", h.SecureCookies, true)
	return pair, nil
}

func (h Handlers) logAuth(c *gin.Context, typ audit.EventType, accountID, msg string) {
	if h.Audit == nil {
		return
	}
	// Best-effort only: an audit outage must not fail the request.
	_ = h.Audit.LogAuth(context.WithoutCancel(c.Request.Context()), typ, accountID, c.ClientIP(), msg)
}

// publicUser strips credentials out of API responses.
func publicUser(u users.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"company_name": u.CompanyName,
		"status":       u.Status,
		"plan":         u.Plan,
		"role":         u.Role,
		"created_at":   u.CreatedAt,
	}
}
