package httpapi

import (
	"net/http"

	"voicecrm/internal/campaigns"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

type campaignRequest struct {
	Name            string                            `json:"name"`
	Description     string                            `json:"description,omitempty"`
	Purpose         string                            `json:"purpose,omitempty"`
	Stages          []string                          `json:"stages"`
	Scripts         map[string]campaigns.StageScript  `json:"scripts"`
	DataFields      []string                          `json:"data_fields,omitempty"`
	ExtractionRules []campaigns.ExtractionRule        `json:"extraction_rules,omitempty"`
	CallContext     map[string]string                 `json:"call_context,omitempty"`
}

func (h Handlers) CreateCampaign(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	if err := h.Users.CheckQuota(id, users.ResourceCampaigns); err != nil {
		h.logQuotaRejected(c, id, users.ResourceCampaigns)
		writeError(c, err)
		return
	}

	campaign, err := h.Campaigns.CreateCampaign(id, campaigns.Campaign{
		Name:            req.Name,
		Description:     req.Description,
		Purpose:         req.Purpose,
		Stages:          req.Stages,
		Scripts:         req.Scripts,
		DataFields:      req.DataFields,
		ExtractionRules: req.ExtractionRules,
		CallContext:     req.CallContext,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Users.RecordUsage(id, users.ResourceCampaigns); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (h Handlers) ListCampaigns(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	if c.Query("active") == "true" {
		c.JSON(http.StatusOK, h.Campaigns.ListActive(id))
		return
	}
	c.JSON(http.StatusOK, h.Campaigns.List(id))
}

func (h Handlers) GetCampaign(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	campaign, err := h.Campaigns.Get(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// GetCampaignStats reports connection and data-capture rates.
func (h Handlers) GetCampaignStats(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	stats, err := h.Reports.CampaignStats(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type campaignActivePatch struct {
	Active *bool `json:"active"`
}

// SetCampaignActive pauses or resumes a campaign.
func (h Handlers) SetCampaignActive(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req campaignActivePatch
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badJSON(c)
		return
	}
	campaign, err := h.Campaigns.SetActive(id, c.Param("id"), *req.Active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// GetCampaignScript renders the script for one stage. Query params become
// placeholder overrides; stage defaults to the first one.
func (h Handlers) GetCampaignScript(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	campaign, err := h.Campaigns.Get(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	stage := c.Query("stage")
	if stage == "" {
		stage = campaign.Stages[0]
	}

	ctx := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if k == "stage" || len(vs) == 0 {
			continue
		}
		ctx[k] = vs[0]
	}

	script, err := h.Campaigns.RenderScript(campaign, stage, ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stage": stage, "script": script})
}
