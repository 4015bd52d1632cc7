package campaigns

import (
	"fmt"
	"regexp"
	"strings"

	"voicecrm/internal/store"
)

// Manager validates campaign definitions and implements the conversational
// mechanics on top of them: script rendering, stage transitions and data
// extraction. All three are pure functions of the campaign configuration so
// they stay deterministic and testable.
type Manager struct {
	repo *Repository

	// fallback replaces placeholders with no value in the render context.
	// The conversational flow must not break on missing data, so unresolved
	// placeholders never produce an error.
	fallback string
}

func NewManager(repo *Repository) *Manager {
	return &Manager{repo: repo}
}

// SetPlaceholderFallback overrides the replacement for unresolved
// placeholders (default: empty string).
func (m *Manager) SetPlaceholderFallback(s string) { m.fallback = s }

// CreateCampaign validates the definition before delegating to the repository.
func (m *Manager) CreateCampaign(tenantID string, c Campaign) (Campaign, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Campaign{}, fmt.Errorf("%w: campaign name is required", store.ErrValidation)
	}
	if len(c.Stages) == 0 {
		return Campaign{}, fmt.Errorf("%w: at least one stage is required", store.ErrValidation)
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for _, s := range c.Stages {
		if s == "" {
			return Campaign{}, fmt.Errorf("%w: empty stage name", store.ErrValidation)
		}
		if _, dup := seen[s]; dup {
			return Campaign{}, fmt.Errorf("%w: duplicate stage %q", store.ErrValidation, s)
		}
		seen[s] = struct{}{}
		if _, ok := c.Scripts[s]; !ok {
			return Campaign{}, fmt.Errorf("%w: no script for stage %q", store.ErrValidation, s)
		}
	}
	for _, rule := range c.ExtractionRules {
		if rule.Field == "" {
			return Campaign{}, fmt.Errorf("%w: extraction rule without field name", store.ErrValidation)
		}
		if !rule.Type.Valid() {
			return Campaign{}, fmt.Errorf("%w: unknown extraction type %q", store.ErrValidation, rule.Type)
		}
		for _, p := range rule.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return Campaign{}, fmt.Errorf("%w: bad pattern for %q: %v", store.ErrValidation, rule.Field, err)
			}
		}
	}

	c.Active = true
	return m.repo.Create(tenantID, c)
}

func (m *Manager) Get(tenantID, id string) (Campaign, error) { return m.repo.Get(tenantID, id) }

func (m *Manager) List(tenantID string) []Campaign { return m.repo.List(tenantID) }

func (m *Manager) ListActive(tenantID string) []Campaign { return m.repo.ListActive(tenantID) }

// SetActive pauses or resumes a campaign.
func (m *Manager) SetActive(tenantID, id string, active bool) (Campaign, error) {
	return m.repo.Update(tenantID, id, func(c *Campaign) { c.Active = active })
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// RenderScript substitutes {placeholder} variables in the stage's script from
// the given context. The campaign's own CallContext supplies defaults;
// anything still unresolved becomes the configured fallback.
func (m *Manager) RenderScript(c Campaign, stage string, ctx map[string]string) (string, error) {
	sc, ok := c.Scripts[stage]
	if !ok {
		return "", fmt.Errorf("%w: campaign has no stage %q", store.ErrValidation, stage)
	}

	return placeholderRe.ReplaceAllStringFunc(sc.Script, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if v, ok := ctx[key]; ok && v != "" {
			return v
		}
		if v, ok := c.CallContext[key]; ok && v != "" {
			return v
		}
		return m.fallback
	}), nil
}

// Script loads the tenant's campaign and renders one stage.
func (m *Manager) Script(tenantID, campaignID, stage string, ctx map[string]string) (string, error) {
	c, err := m.repo.Get(tenantID, campaignID)
	if err != nil {
		return "", err
	}
	return m.RenderScript(c, stage, ctx)
}

// NextStage evaluates the current stage's transition rule against the latest
// user turn. It returns the stage to be in next, unchanged when the rule is
// not satisfied or the current stage is the last one. Stages never regress.
func (m *Manager) NextStage(c Campaign, current string, turns int, latestUserText string) (string, error) {
	idx := c.StageIndex(current)
	if idx < 0 {
		return "", fmt.Errorf("%w: campaign has no stage %q", store.ErrValidation, current)
	}
	if idx == len(c.Stages)-1 {
		return current, nil
	}

	rule := c.Scripts[current].Transition
	if !transitionSatisfied(rule, turns, latestUserText) {
		return current, nil
	}
	return c.Stages[idx+1], nil
}

func transitionSatisfied(rule TransitionRule, turns int, latest string) bool {
	if rule.SentimentThreshold != nil && SentimentScore(latest) >= *rule.SentimentThreshold {
		return true
	}
	if len(rule.Keywords) == 0 {
		// No trigger keywords configured: the primary condition can never
		// fire, only the sentiment threshold above.
		return false
	}
	if turns < rule.MinTurns {
		return false
	}
	return containsAny(latest, rule.Keywords)
}

// ExtractData applies every extraction rule independently over the transcript
// text and returns the matched fields plus the names of required fields that
// stayed unmatched. Missing required fields are reported, never defaulted.
func (m *Manager) ExtractData(c Campaign, transcript []string) (map[string]string, []string) {
	text := strings.Join(transcript, "\n")

	out := map[string]string{}
	var missing []string
	for _, rule := range c.ExtractionRules {
		val, ok := applyRule(rule, text)
		if ok {
			out[rule.Field] = val
		} else if rule.Required {
			missing = append(missing, rule.Field)
		}
	}
	return out, missing
}

func applyRule(rule ExtractionRule, text string) (string, bool) {
	switch rule.Type {
	case ExtractKeyword:
		if containsAny(text, rule.Keywords) {
			return "true", true
		}
	case ExtractPattern:
		for _, p := range rule.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				continue
			}
			groups := re.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
			if len(groups) > 1 && groups[1] != "" {
				return groups[1], true
			}
			return groups[0], true
		}
	case ExtractSentiment:
		score := SentimentScore(text)
		switch {
		case score > 0:
			return "positive", true
		case score < 0:
			return "negative", true
		default:
			return "neutral", true
		}
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
