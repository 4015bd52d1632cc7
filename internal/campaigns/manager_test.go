package campaigns

import (
	"errors"
	"testing"

	"voicecrm/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	repo, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return NewManager(repo)
}

func salesCampaign() Campaign {
	threshold := 0.5
	return Campaign{
		Name:   "Outreach",
		Stages: []string{"intro", "pitch", "close"},
		Scripts: map[string]StageScript{
			"intro": {
				Script:     "Hello {contact_name}, this is {agent_name} from {company_name}.",
				Transition: TransitionRule{MinTurns: 2, Keywords: []string{"yes", "sure"}},
			},
			"pitch": {
				Script:     "Our {product_name} helps with {pain_point}.",
				Transition: TransitionRule{MinTurns: 1, Keywords: []string{"how"}, SentimentThreshold: &threshold},
			},
			"close": {
				Script: "Shall we schedule a demo, {contact_name}?",
			},
		},
		CallContext: map[string]string{"agent_name": "Sarah", "company_name": "TechCorp"},
		DataFields:  []string{"email", "budget"},
		ExtractionRules: []ExtractionRule{
			{Field: "email", Type: ExtractPattern, Patterns: []string{`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`}, Required: true},
			{Field: "decision_maker", Type: ExtractKeyword, Keywords: []string{"i decide", "my call"}},
			{Field: "mood", Type: ExtractSentiment},
		},
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	m := newTestManager(t)

	cases := []struct {
		name   string
		mutate func(*Campaign)
	}{
		{"no stages", func(c *Campaign) { c.Stages = nil }},
		{"missing script for stage", func(c *Campaign) { delete(c.Scripts, "pitch") }},
		{"no name", func(c *Campaign) { c.Name = " " }},
		{"duplicate stage", func(c *Campaign) { c.Stages = append(c.Stages, "intro") }},
		{"bad extraction pattern", func(c *Campaign) {
			c.ExtractionRules = []ExtractionRule{{Field: "x", Type: ExtractPattern, Patterns: []string{"("}}}
		}},
		{"bad extraction type", func(c *Campaign) {
			c.ExtractionRules = []ExtractionRule{{Field: "x", Type: "guess"}}
		}},
	}
	for _, tc := range cases {
		c := salesCampaign()
		tc.mutate(&c)
		if _, err := m.CreateCampaign("acme", c); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	created, err := m.CreateCampaign("acme", salesCampaign())
	if err != nil {
		t.Fatalf("valid campaign rejected: %v", err)
	}
	if !created.Active || created.TenantID != "acme" {
		t.Fatalf("unexpected campaign: %+v", created)
	}
}

func TestRenderScriptSubstitutesAndFallsBack(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	got, err := m.RenderScript(c, "intro", map[string]string{"contact_name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "Hello Ada, this is Sarah from TechCorp."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Unresolved placeholders take the fallback, never an error.
	m.SetPlaceholderFallback("there")
	got, err = m.RenderScript(c, "close", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Shall we schedule a demo, there?" {
		t.Fatalf("fallback not applied: %q", got)
	}

	if _, err := m.RenderScript(c, "wrap-up", nil); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("unknown stage must be a validation error, got %v", err)
	}
}

func TestNextStageRequiresKeywordAndMinTurns(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	// Below min turns, even with the keyword.
	next, err := m.NextStage(c, "intro", 1, "yes please")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "intro" {
		t.Fatalf("must stay on intro below min turns, got %q", next)
	}

	// Enough turns but no trigger keyword: stays, for any number of turns.
	for _, turns := range []int{2, 5, 50} {
		next, _ = m.NextStage(c, "intro", turns, "tell me more about pricing")
		if next != "intro" {
			t.Fatalf("must stay on intro without keyword at %d turns, got %q", turns, next)
		}
	}

	// Both satisfied.
	next, _ = m.NextStage(c, "intro", 2, "sure, go ahead")
	if next != "pitch" {
		t.Fatalf("expected pitch, got %q", next)
	}
}

func TestNextStageSentimentThreshold(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	// No keyword match, but strongly positive sentiment crosses the 0.5
	// threshold configured on pitch.
	next, err := m.NextStage(c, "pitch", 0, "great, absolutely love it")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "close" {
		t.Fatalf("expected close via sentiment, got %q", next)
	}
}

func TestNextStageNeverRegresses(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	// Terminal stage stays terminal regardless of input.
	next, err := m.NextStage(c, "close", 99, "yes yes yes")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != "close" {
		t.Fatalf("terminal stage moved: %q", next)
	}

	// Any returned stage is at or after the current one in declared order.
	for _, stage := range c.Stages {
		got, err := m.NextStage(c, stage, 10, "yes sure how great absolutely")
		if err != nil {
			t.Fatalf("next(%s): %v", stage, err)
		}
		if c.StageIndex(got) < c.StageIndex(stage) {
			t.Fatalf("stage regressed from %q to %q", stage, got)
		}
	}

	if _, err := m.NextStage(c, "unknown", 0, ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("unknown stage must be a validation error, got %v", err)
	}
}

func TestExtractData(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	data, missing := m.ExtractData(c, []string{
		"hi, it's my call whether we buy",
		"reach me at ada@acme.test thanks",
	})
	if data["email"] != "ada@acme.test" {
		t.Fatalf("email not extracted: %v", data)
	}
	if data["decision_maker"] != "true" {
		t.Fatalf("keyword rule not matched: %v", data)
	}
	if data["mood"] != "positive" {
		t.Fatalf("sentiment rule: %v", data)
	}
	if len(missing) != 0 {
		t.Fatalf("nothing should be missing: %v", missing)
	}
}

func TestExtractDataReportsMissingRequired(t *testing.T) {
	m := newTestManager(t)
	c := salesCampaign()

	data, missing := m.ExtractData(c, []string{"no email here"})
	if _, ok := data["email"]; ok {
		t.Fatalf("email must not be defaulted: %v", data)
	}
	if len(missing) != 1 || missing[0] != "email" {
		t.Fatalf("required field must be reported missing: %v", missing)
	}
}

func TestSentimentScore(t *testing.T) {
	if got := SentimentScore("great, love it, thanks"); got <= 0 {
		t.Fatalf("expected positive score, got %v", got)
	}
	if got := SentimentScore("terrible, never, stop calling"); got >= 0 {
		t.Fatalf("expected negative score, got %v", got)
	}
	if got := SentimentScore("the meeting is on tuesday"); got != 0 {
		t.Fatalf("expected neutral score, got %v", got)
	}
}
