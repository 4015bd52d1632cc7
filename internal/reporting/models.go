package reporting

// CallsSummary aggregates call outcomes for one account.
type CallsSummary struct {
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	ScheduledCalls  int `json:"scheduled_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// CampaignStats measures how one campaign converts.
type CampaignStats struct {
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`

	// ConversationsWithData counts conversations that captured at least one
	// extraction field.
	ConversationsWithData int `json:"conversations_with_data"`
	// FinalStageReached counts conversations that made it to the campaign's
	// last declared stage.
	FinalStageReached int `json:"final_stage_reached"`

	ConnectionRate float64 `json:"connection_rate"`
	CaptureRate    float64 `json:"capture_rate"`
}
