package reporting

import (
	"errors"

	"voicecrm/internal/calls"
	"voicecrm/internal/campaigns"
	"voicecrm/internal/conversations"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CallSource and ConversationSource are the read-side slices of the entity
// repositories the service aggregates over. Implementations must already
// enforce account filtering.

type CallSource interface {
	List(tenantID string) []calls.Call
	ListByCampaign(tenantID, campaignID string) []calls.Call
}

type ConversationSource interface {
	List(tenantID string) []conversations.Conversation
}

type CampaignSource interface {
	Get(tenantID, id string) (campaigns.Campaign, error)
}

type Service struct {
	calls     CallSource
	convos    ConversationSource
	campaigns CampaignSource
}

func NewService(callSrc CallSource, convoSrc ConversationSource, campaignSrc CampaignSource) *Service {
	return &Service{calls: callSrc, convos: convoSrc, campaigns: campaignSrc}
}

// CallsSummary aggregates every call the account owns, optionally narrowed
// to one campaign.
func (s *Service) CallsSummary(accountID, campaignID string) (CallsSummary, error) {
	if accountID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}

	var rows []calls.Call
	if campaignID != "" {
		rows = s.calls.ListByCampaign(accountID, campaignID)
	} else {
		rows = s.calls.List(accountID)
	}

	out := CallsSummary{AccountID: accountID, CampaignID: campaignID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.StatusScheduled:
			out.ScheduledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// CampaignStats reports connection and data-capture rates for one campaign.
func (s *Service) CampaignStats(accountID, campaignID string) (CampaignStats, error) {
	if accountID == "" || campaignID == "" {
		return CampaignStats{}, ErrInvalidRequest
	}
	campaign, err := s.campaigns.Get(accountID, campaignID)
	if err != nil {
		return CampaignStats{}, err
	}

	out := CampaignStats{AccountID: accountID, CampaignID: campaignID}
	for _, c := range s.calls.ListByCampaign(accountID, campaignID) {
		out.CallsAttempted++
		if c.Status == calls.StatusCompleted {
			out.CallsConnected++
		}
	}

	finalStage := campaign.Stages[len(campaign.Stages)-1]
	for _, convo := range s.convos.List(accountID) {
		if convo.CampaignID != campaignID {
			continue
		}
		if len(convo.CollectedData) > 0 {
			out.ConversationsWithData++
		}
		if convo.Stage == finalStage {
			out.FinalStageReached++
		}
	}

	if out.CallsAttempted > 0 {
		out.ConnectionRate = float64(out.CallsConnected) / float64(out.CallsAttempted)
		out.CaptureRate = float64(out.ConversationsWithData) / float64(out.CallsAttempted)
	}
	return out, nil
}
