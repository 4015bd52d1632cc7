package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"voicecrm/internal/calls"
	"voicecrm/internal/campaigns"
	"voicecrm/internal/contacts"
	"voicecrm/internal/conversations"
	"voicecrm/internal/speech"
)

type fakeSTT struct {
	texts []string
	fails int
	calls int
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []byte) (string, error) {
	f.calls++
	if f.fails > 0 {
		f.fails--
		return "", speech.ErrExternalService
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

type fakeTTS struct {
	fails int
	calls int
}

func (f *fakeTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls++
	if f.fails > 0 {
		f.fails--
		return nil, speech.ErrExternalService
	}
	return []byte(text), nil
}

type fakeQuota struct {
	denied   bool
	recorded int
}

func (f *fakeQuota) CheckQuota(_, _ string) error {
	if f.denied {
		return errors.New("quota exceeded")
	}
	return nil
}

func (f *fakeQuota) RecordUsage(_, _ string) error {
	f.recorded++
	return nil
}

type fixture struct {
	agent    *Agent
	calls    *calls.Repository
	contacts *contacts.Repository
	convos   *conversations.Repository
	stt      *fakeSTT
	tts      *fakeTTS
	quota    *fakeQuota

	tenantID   string
	contactID  string
	campaignID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	callRepo, err := calls.Open(dir)
	if err != nil {
		t.Fatalf("open calls: %v", err)
	}
	contactRepo, err := contacts.Open(dir)
	if err != nil {
		t.Fatalf("open contacts: %v", err)
	}
	campaignRepo, err := campaigns.Open(dir)
	if err != nil {
		t.Fatalf("open campaigns: %v", err)
	}
	convoRepo, err := conversations.Open(dir)
	if err != nil {
		t.Fatalf("open conversations: %v", err)
	}

	campaignMgr := campaigns.NewManager(campaignRepo)

	const tenantID = "tenant-1"
	contact, err := contactRepo.Create(tenantID, contacts.Contact{
		PhoneNumber: "+15550001111",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Company:     "Analytical Engines",
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}

	sentiment := 0.9
	campaign, err := campaignMgr.CreateCampaign(tenantID, campaigns.Campaign{
		Name:   "renewals",
		Stages: []string{"intro", "pitch", "close"},
		Scripts: map[string]campaigns.StageScript{
			"intro": {
				Script:     "Hi {first_name}, calling about {company}.",
				Transition: campaigns.TransitionRule{MinTurns: 1, Keywords: []string{"yes"}},
			},
			"pitch": {
				Script:     "Great. What is your budget, {first_name}?",
				Transition: campaigns.TransitionRule{SentimentThreshold: &sentiment},
			},
			"close": {Script: "Thanks {first_name}, goodbye."},
		},
		ExtractionRules: []campaigns.ExtractionRule{
			{Field: "budget", Type: campaigns.ExtractPattern, Patterns: []string{`\$([0-9,]+)`}},
			{Field: "interested", Type: campaigns.ExtractKeyword, Keywords: []string{"yes", "interested"}},
		},
		Active: true,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	fx := &fixture{
		calls:      callRepo,
		contacts:   contactRepo,
		convos:     convoRepo,
		stt:        &fakeSTT{},
		tts:        &fakeTTS{},
		quota:      &fakeQuota{},
		tenantID:   tenantID,
		contactID:  contact.ID,
		campaignID: campaign.ID,
	}
	fx.agent = New(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		callRepo, contactRepo, campaignMgr, convoRepo,
		fx.quota, fx.stt, fx.tts, nil, nil,
		Config{RetryAttempts: 3, RetrySleep: 1},
	)
	fx.agent.sleep = func(_ time.Duration) {}
	return fx
}

func TestStartOpensWithRenderedScript(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Call.Status != calls.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", res.Call.Status)
	}
	want := "Hi Ada, calling about Analytical Engines."
	if res.Opening != want {
		t.Fatalf("opening = %q, want %q", res.Opening, want)
	}
	if string(res.Audio) != want {
		t.Fatalf("audio = %q", res.Audio)
	}
	if len(res.Conversation.Transcript) != 1 || res.Conversation.Transcript[0].Speaker != conversations.SpeakerAgent {
		t.Fatalf("transcript = %+v", res.Conversation.Transcript)
	}
	if fx.quota.recorded != 1 {
		t.Fatalf("usage recorded %d times", fx.quota.recorded)
	}
}

func TestStartRejectsWhenQuotaDenied(t *testing.T) {
	fx := newFixture(t)
	fx.quota.denied = true

	if _, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID); err == nil {
		t.Fatal("Start succeeded despite quota denial")
	}
	if got := fx.calls.List(fx.tenantID); len(got) != 0 {
		t.Fatalf("calls = %d, want 0", len(got))
	}
}

func TestProcessTurnTranscribesExtractsAndAdvances(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	fx.stt.texts = []string{"yes I am interested, budget is $5,000"}
	turn, err := fx.agent.ProcessTurn(context.Background(), fx.tenantID, res.Call.ID, TurnInput{Audio: []byte{1}})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if turn.Stage != "pitch" {
		t.Fatalf("stage = %q, want pitch (keyword matched after one turn)", turn.Stage)
	}
	if turn.Collected["budget"] != "5,000" {
		t.Fatalf("budget = %q", turn.Collected["budget"])
	}
	if turn.Collected["interested"] != "true" {
		t.Fatalf("interested = %q", turn.Collected["interested"])
	}
	if turn.Response != "Great. What is your budget, Ada?" {
		t.Fatalf("response = %q", turn.Response)
	}

	convo, err := fx.convos.GetByCall(fx.tenantID, res.Call.ID)
	if err != nil {
		t.Fatalf("GetByCall: %v", err)
	}
	if len(convo.Transcript) != 3 {
		t.Fatalf("transcript turns = %d, want 3", len(convo.Transcript))
	}
	if len(convo.StageHistory) != 1 || convo.StageHistory[0].To != "pitch" {
		t.Fatalf("stage history = %+v", convo.StageHistory)
	}
}

func TestProcessTurnAcceptsTextInput(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	turn, err := fx.agent.ProcessTurn(context.Background(), fx.tenantID, res.Call.ID, TurnInput{Text: "hello?"})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if fx.stt.calls != 0 {
		t.Fatalf("stt called %d times for text input", fx.stt.calls)
	}
	if turn.Stage != "intro" {
		t.Fatalf("stage = %q, want intro (no keyword)", turn.Stage)
	}
}

func TestRetryExhaustionFailsCall(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	fx.stt.fails = 3 // every attempt fails
	_, err = fx.agent.ProcessTurn(context.Background(), fx.tenantID, res.Call.ID, TurnInput{Audio: []byte{1}})
	if !errors.Is(err, speech.ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
	if fx.stt.calls != 3 {
		t.Fatalf("stt attempts = %d, want 3", fx.stt.calls)
	}

	call, err := fx.calls.Get(fx.tenantID, res.Call.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if call.Status != calls.StatusFailed {
		t.Fatalf("status = %s, want failed", call.Status)
	}
}

func TestTransientFailureRecovers(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	fx.stt.fails = 2 // third attempt succeeds
	fx.stt.texts = []string{"hello"}
	if _, err := fx.agent.ProcessTurn(context.Background(), fx.tenantID, res.Call.ID, TurnInput{Audio: []byte{1}}); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	call, _ := fx.calls.Get(fx.tenantID, res.Call.ID)
	if call.Status != calls.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", call.Status)
	}
}

func TestEndCompletesAndMarksContact(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	call, err := fx.agent.End(context.Background(), fx.tenantID, res.Call.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if call.Status != calls.StatusCompleted {
		t.Fatalf("status = %s, want completed", call.Status)
	}

	contact, err := fx.contacts.Get(fx.tenantID, fx.contactID)
	if err != nil {
		t.Fatalf("Get contact: %v", err)
	}
	if contact.Status != contacts.StatusContacted {
		t.Fatalf("contact status = %s, want contacted", contact.Status)
	}
}

func TestFinishedCallRejectsFurtherTurns(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.agent.End(context.Background(), fx.tenantID, res.Call.ID); err != nil {
		t.Fatalf("End: %v", err)
	}

	if _, err := fx.agent.ProcessTurn(context.Background(), fx.tenantID, res.Call.ID, TurnInput{Text: "hi"}); !errors.Is(err, ErrCallFinished) {
		t.Fatalf("err = %v, want ErrCallFinished", err)
	}
	if _, err := fx.agent.End(context.Background(), fx.tenantID, res.Call.ID); !errors.Is(err, ErrCallFinished) {
		t.Fatalf("second End err = %v, want ErrCallFinished", err)
	}
}

func TestCrossTenantCallInvisible(t *testing.T) {
	fx := newFixture(t)
	res, err := fx.agent.Start(context.Background(), fx.tenantID, fx.contactID, fx.campaignID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := fx.agent.ProcessTurn(context.Background(), "tenant-2", res.Call.ID, TurnInput{Text: "hi"}); err == nil {
		t.Fatal("cross-tenant turn succeeded")
	}
}
