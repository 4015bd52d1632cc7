package httpapi

import (
	"errors"
	"net/http"

	"voicecrm/internal/agent"
	"voicecrm/internal/calls"
	"voicecrm/internal/users"

	"github.com/gin-gonic/gin"
)

type startCallRequest struct {
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`
}

func (h Handlers) StartCall(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if req.ContactID == "" || req.CampaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "contact_id and campaign_id required"})
		return
	}

	res, err := h.Agent.Start(c.Request.Context(), id, req.ContactID, req.CampaignID)
	if err != nil {
		if errors.Is(err, agent.ErrConcurrencyCap) {
			h.logQuotaRejected(c, id, users.ResourceCalls)
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type processTurnRequest struct {
	CallID string `json:"call_id"`
	Audio  []byte `json:"audio,omitempty"`
	Text   string `json:"text,omitempty"`
}

func (h Handlers) ProcessTurn(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req processTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	if len(req.Audio) == 0 && req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "audio or text required"})
		return
	}

	res, err := h.Agent.ProcessTurn(c.Request.Context(), id, req.CallID, agent.TurnInput{
		Audio: req.Audio,
		Text:  req.Text,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type endCallRequest struct {
	CallID string `json:"call_id"`
}

func (h Handlers) EndCall(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		badJSON(c)
		return
	}

	call, err := h.Agent.End(c.Request.Context(), id, req.CallID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// CallStatus reports one call, or lists calls filtered by status/campaign.
func (h Handlers) CallStatus(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	if callID := c.Query("call_id"); callID != "" {
		call, convo, err := h.Agent.Status(id, callID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"call": call, "conversation": convo})
		return
	}

	switch {
	case c.Query("status") != "":
		c.JSON(http.StatusOK, h.Calls.ListByStatus(id, calls.CallStatus(c.Query("status"))))
	case c.Query("campaign_id") != "":
		c.JSON(http.StatusOK, h.Calls.ListByCampaign(id, c.Query("campaign_id")))
	default:
		c.JSON(http.StatusOK, h.Calls.List(id))
	}
}

func (h Handlers) GetConversation(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	convo, err := h.Convos.Get(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convo)
}

// ConversationSummary condenses a conversation for list views.
func (h Handlers) ConversationSummary(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	convo, err := h.Convos.Get(id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               convo.ID,
		"call_id":          convo.CallID,
		"campaign_id":      convo.CampaignID,
		"contact_id":       convo.ContactID,
		"stage":            convo.Stage,
		"turns":            len(convo.Transcript),
		"user_turns":       convo.UserTurns(),
		"collected_data":   convo.CollectedData,
		"stage_history":    convo.StageHistory,
		"duration_seconds": convo.DurationSeconds,
	})
}
