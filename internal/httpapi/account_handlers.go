package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"voicecrm/internal/auth"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetProfile(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := publicUser(u)
	resp["phone_numbers"] = u.PhoneNumbers
	resp["settings"] = u.Settings
	resp["contact_fields"] = u.ContactFields
	resp["last_login_at"] = u.LastLoginAt
	c.JSON(http.StatusOK, resp)
}

type profilePatch struct {
	FirstName     *string           `json:"first_name"`
	LastName      *string           `json:"last_name"`
	CompanyName   *string           `json:"company_name"`
	PhoneNumbers  []string          `json:"phone_numbers"`
	Settings      map[string]string `json:"settings"`
	ContactFields []string          `json:"contact_fields"`
}

func (h Handlers) UpdateProfile(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req profilePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	u, err := h.Users.UpdateProfile(id, users.ProfileUpdate{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		CompanyName:   req.CompanyName,
		PhoneNumbers:  req.PhoneNumbers,
		Settings:      req.Settings,
		ContactFields: req.ContactFields,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicUser(u))
}

func (h Handlers) RotateAPIKey(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	u, err := h.Users.RegenerateAPIKey(id)
	if err != nil {
		writeError(c, err)
		return
	}
	// The key is shown once; subsequent profile reads omit it.
	c.JSON(http.StatusOK, gin.H{"api_key": u.APIKey})
}

func (h Handlers) Usage(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	report, err := h.Users.Usage(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Dashboard aggregates per-tenant counts for the landing view.
func (h Handlers) Dashboard(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	summary, err := h.Reports.CallsSummary(id, "")
	if err != nil {
		writeError(c, err)
		return
	}
	report, err := h.Users.Usage(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contacts":  len(h.Contacts.List(id)),
		"campaigns": len(h.Campaigns.List(id)),
		"calls":     summary,
		"plan":      report.Plan,
		"usage":     report.Usage,
		"limits":    report.Limits,
	})
}

// EraseAccountData runs the tenant data-erasure sweep. Owner-only; the
// response reports the per-type outcome even on partial failure.
func (h Handlers) EraseAccountData(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	report, err := h.Users.EraseTenantData(id)
	if err != nil && len(report.Deleted) == 0 && len(report.Failed) == 0 {
		writeError(c, err)
		return
	}

	if h.Audit != nil {
		role, _ := auth.Role(c.Request.Context())
		meta, _ := json.Marshal(report)
		_ = h.Audit.LogErasure(context.WithoutCancel(c.Request.Context()), id, id, role, c.ClientIP(), string(meta))
	}

	status := http.StatusOK
	if len(report.Failed) > 0 {
		// Partial success: the caller can retry the failed types.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}
