package campaigns

import "voicecrm/internal/store"

// Campaign is a tenant-scoped conversation playbook: an ordered list of
// stages, a script per stage, and the rules that move a call forward and pull
// structured data out of the transcript.
type Campaign struct {
	store.Meta

	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Purpose     string `json:"purpose,omitempty"`

	// Stages is the declared ordering. A conversation's stage is always one
	// of these, and only ever moves forward through the list.
	Stages []string `json:"stages"`

	// Scripts must hold an entry for every declared stage.
	Scripts map[string]StageScript `json:"scripts"`

	// DataFields lists the field names the campaign wants collected.
	DataFields []string `json:"data_fields,omitempty"`

	ExtractionRules []ExtractionRule `json:"extraction_rules,omitempty"`

	// CallContext supplies default placeholder values (agent_name,
	// company_name, product_name, ...) for script rendering.
	CallContext map[string]string `json:"call_context,omitempty"`

	Active bool `json:"active"`
}

// StageIndex returns the position of a stage in the declared ordering, or -1.
func (c Campaign) StageIndex(stage string) int {
	for i, s := range c.Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

type StageScript struct {
	// Script is the stage's template text with {placeholder} variables.
	Script string `json:"script"`

	Transition TransitionRule `json:"transition"`
}

// TransitionRule gates the move to the next stage. The stage advances when
// the turn count has reached MinTurns AND one of Keywords appears in the
// latest user turn, OR the latest turn's sentiment meets SentimentThreshold.
// A zero rule never transitions automatically.
type TransitionRule struct {
	MinTurns           int      `json:"min_turns,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	SentimentThreshold *float64 `json:"sentiment_threshold,omitempty"`
}

// ExtractionRule pulls one structured field out of free-form transcript text.
type ExtractionRule struct {
	Field string         `json:"field"`
	Type  ExtractionType `json:"type"`

	// Keywords trigger a boolean match for keyword rules.
	Keywords []string `json:"keywords,omitempty"`
	// Patterns are regular expressions tried in order for pattern rules. The
	// first capture group wins when present, otherwise the whole match.
	Patterns []string `json:"patterns,omitempty"`

	Required bool `json:"required,omitempty"`
}

type ExtractionType string

const (
	ExtractKeyword   ExtractionType = "keyword"
	ExtractPattern   ExtractionType = "pattern"
	ExtractSentiment ExtractionType = "sentiment"
)

func (t ExtractionType) Valid() bool {
	switch t {
	case ExtractKeyword, ExtractPattern, ExtractSentiment:
		return true
	default:
		return false
	}
}
