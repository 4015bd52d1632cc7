package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"voicecrm/internal/calls"
	"voicecrm/internal/campaigns"
	"voicecrm/internal/contacts"
	"voicecrm/internal/conversations"
	"voicecrm/internal/speech"
	"voicecrm/internal/users"
	"voicecrm/pkg/utils"
)

var (
	// ErrCallFinished is returned when a turn arrives for a terminal call.
	ErrCallFinished = errors.New("agent: call already finished")

	// ErrConcurrencyCap is returned when the tenant is at its concurrent
	// call limit.
	ErrConcurrencyCap = errors.New("agent: concurrent call limit reached")
)

// QuotaKeeper gates and records per-tenant resource usage.
type QuotaKeeper interface {
	CheckQuota(tenantID, resource string) error
	RecordUsage(tenantID, resource string) error
}

// Config tunes the agent's external-call behavior.
type Config struct {
	// RetryAttempts caps calls to the speech services per step. Default 3.
	RetryAttempts int
	// RetrySleep is the fixed pause between attempts. Default 500ms.
	RetrySleep time.Duration

	// MaxConcurrentCalls caps in-flight calls per tenant when a Redis
	// client is supplied. Zero disables the cap.
	MaxConcurrentCalls int
	// CapTTL bounds slot leakage on crash. Default 15m.
	CapTTL time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.RetryAttempts <= 0 {
		out.RetryAttempts = 3
	}
	if out.RetrySleep <= 0 {
		out.RetrySleep = 500 * time.Millisecond
	}
	if out.CapTTL <= 0 {
		out.CapTTL = 15 * time.Minute
	}
	return out
}

// Agent drives outbound calls one turn at a time: transcribe what the callee
// said, collect data, advance the campaign stage, answer with the stage
// script, synthesize audio. Every mutation is persisted before the next step.
type Agent struct {
	log *slog.Logger

	calls     *calls.Repository
	contacts  *contacts.Repository
	campaigns *campaigns.Manager
	convos    *conversations.Repository
	quota     QuotaKeeper

	stt       speech.Transcriber
	tts       speech.Synthesizer
	responder speech.Responder

	rdb *redis.Client

	cfg   Config
	sleep func(time.Duration)
	clock func() time.Time
}

func New(
	log *slog.Logger,
	callRepo *calls.Repository,
	contactRepo *contacts.Repository,
	campaignMgr *campaigns.Manager,
	convoRepo *conversations.Repository,
	quota QuotaKeeper,
	stt speech.Transcriber,
	tts speech.Synthesizer,
	responder speech.Responder,
	rdb *redis.Client,
	cfg Config,
) *Agent {
	if responder == nil {
		responder = speech.ScriptResponder{}
	}
	return &Agent{
		log:       log,
		calls:     callRepo,
		contacts:  contactRepo,
		campaigns: campaignMgr,
		convos:    convoRepo,
		quota:     quota,
		stt:       stt,
		tts:       tts,
		responder: responder,
		rdb:       rdb,
		cfg:       cfg.withDefaults(),
		sleep:     time.Sleep,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// StartResult reports the newly placed call and its opening line.
type StartResult struct {
	Call         calls.Call                 `json:"call"`
	Conversation conversations.Conversation `json:"conversation"`
	Opening      string                     `json:"opening"`
	Audio        []byte                     `json:"audio,omitempty"`
}

// Start places a call to a contact under a campaign: quota and cap checks,
// call + conversation records, then the synthesized opening script.
func (a *Agent) Start(ctx context.Context, tenantID, contactID, campaignID string) (StartResult, error) {
	if a.quota != nil {
		if err := a.quota.CheckQuota(tenantID, users.ResourceCalls); err != nil {
			return StartResult{}, err
		}
	}

	contact, err := a.contacts.Get(tenantID, contactID)
	if err != nil {
		return StartResult{}, fmt.Errorf("contact: %w", err)
	}
	campaign, err := a.campaigns.Get(tenantID, campaignID)
	if err != nil {
		return StartResult{}, fmt.Errorf("campaign: %w", err)
	}

	releaseOnErr := false
	if err := a.acquireCap(ctx, tenantID); err != nil {
		return StartResult{}, err
	}
	defer func() {
		if !releaseOnErr {
			return
		}
		a.releaseCap(ctx, tenantID)
	}()

	call, err := a.calls.Create(tenantID, calls.Call{
		ContactID:   contactID,
		CampaignID:  campaignID,
		PhoneNumber: contact.PhoneNumber,
	})
	if err != nil {
		releaseOnErr = true
		return StartResult{}, err
	}
	call, err = a.calls.Transition(tenantID, call.ID, calls.StatusInProgress)
	if err != nil {
		releaseOnErr = true
		return StartResult{}, err
	}

	convo, err := a.convos.Create(tenantID, conversations.Conversation{
		ContactID:  contactID,
		CampaignID: campaignID,
		CallID:     call.ID,
		Stage:      campaign.Stages[0],
	})
	if err != nil {
		releaseOnErr = true
		a.failCall(tenantID, call.ID, "conversation setup failed")
		return StartResult{}, err
	}

	if a.quota != nil {
		if err := a.quota.RecordUsage(tenantID, users.ResourceCalls); err != nil {
			a.log.Warn("usage record failed", "tenant_id", tenantID, "error", err)
		}
	}

	opening, err := a.campaigns.RenderScript(campaign, convo.Stage, contactContext(contact))
	if err != nil {
		releaseOnErr = true
		a.failCall(tenantID, call.ID, "opening script render failed")
		return StartResult{}, err
	}

	audio, err := a.synthesize(ctx, opening)
	if err != nil {
		releaseOnErr = true
		a.failCall(tenantID, call.ID, "tts failed on opening")
		return StartResult{}, err
	}

	convo, err = a.convos.AppendTurn(tenantID, convo.ID, conversations.SpeakerAgent, opening)
	if err != nil {
		releaseOnErr = true
		a.failCall(tenantID, call.ID, "transcript write failed")
		return StartResult{}, err
	}

	a.log.Info("call started",
		"tenant_id", tenantID,
		"call_id", call.ID,
		"campaign_id", campaignID,
		"contact_id", contactID,
		"stage", convo.Stage)

	return StartResult{Call: call, Conversation: convo, Opening: opening, Audio: audio}, nil
}

// TurnInput carries one callee utterance, as audio to transcribe or as text.
type TurnInput struct {
	Audio []byte `json:"audio,omitempty"`
	Text  string `json:"text,omitempty"`
}

// TurnResult reports everything one turn produced.
type TurnResult struct {
	UserText  string            `json:"user_text"`
	Response  string            `json:"response"`
	Audio     []byte            `json:"audio,omitempty"`
	Stage     string            `json:"stage"`
	Collected map[string]string `json:"collected,omitempty"`
	// MissingRequired lists required extraction fields with no value yet.
	MissingRequired []string `json:"missing_required,omitempty"`
}

// ProcessTurn runs one strictly sequential turn of the call loop.
func (a *Agent) ProcessTurn(ctx context.Context, tenantID, callID string, in TurnInput) (TurnResult, error) {
	call, err := a.calls.Get(tenantID, callID)
	if err != nil {
		return TurnResult{}, err
	}
	if call.Status.Terminal() {
		return TurnResult{}, ErrCallFinished
	}
	if call.Status != calls.StatusInProgress {
		return TurnResult{}, fmt.Errorf("%w: call is %s", calls.ErrBadTransition, call.Status)
	}

	convo, err := a.convos.GetByCall(tenantID, callID)
	if err != nil {
		return TurnResult{}, err
	}
	campaign, err := a.campaigns.Get(tenantID, call.CampaignID)
	if err != nil {
		return TurnResult{}, err
	}
	contact, err := a.contacts.Get(tenantID, call.ContactID)
	if err != nil {
		return TurnResult{}, err
	}

	userText := strings.TrimSpace(in.Text)
	if userText == "" {
		userText, err = a.transcribe(ctx, in.Audio)
		if err != nil {
			a.failCall(tenantID, callID, "stt failed")
			a.releaseCap(ctx, tenantID)
			return TurnResult{}, err
		}
	}

	convo, err = a.convos.AppendTurn(tenantID, convo.ID, conversations.SpeakerUser, userText)
	if err != nil {
		return TurnResult{}, err
	}

	extracted, missing := a.campaigns.ExtractData(campaign, userLines(convo))
	if len(extracted) > 0 {
		convo, err = a.convos.MergeCollectedData(tenantID, convo.ID, extracted)
		if err != nil {
			return TurnResult{}, err
		}
	}

	next, err := a.campaigns.NextStage(campaign, convo.Stage, convo.UserTurns(), userText)
	if err != nil {
		return TurnResult{}, err
	}
	if next != convo.Stage {
		convo, err = a.convos.SetStage(tenantID, convo.ID, next, "transition rule matched")
		if err != nil {
			return TurnResult{}, err
		}
		a.log.Info("stage advanced",
			"tenant_id", tenantID, "call_id", callID, "stage", next)
	}

	scriptCtx := contactContext(contact)
	for k, v := range convo.CollectedData {
		scriptCtx[k] = v
	}
	script, err := a.campaigns.RenderScript(campaign, convo.Stage, scriptCtx)
	if err != nil {
		return TurnResult{}, err
	}

	response, err := a.respond(ctx, speech.RespondRequest{
		Script:        script,
		UserText:      userText,
		Stage:         convo.Stage,
		CollectedData: convo.CollectedData,
	})
	if err != nil {
		a.failCall(tenantID, callID, "responder failed")
		a.releaseCap(ctx, tenantID)
		return TurnResult{}, err
	}

	audio, err := a.synthesize(ctx, response)
	if err != nil {
		a.failCall(tenantID, callID, "tts failed")
		a.releaseCap(ctx, tenantID)
		return TurnResult{}, err
	}

	convo, err = a.convos.AppendTurn(tenantID, convo.ID, conversations.SpeakerAgent, response)
	if err != nil {
		return TurnResult{}, err
	}

	return TurnResult{
		UserText:        userText,
		Response:        response,
		Audio:           audio,
		Stage:           convo.Stage,
		Collected:       convo.CollectedData,
		MissingRequired: missing,
	}, nil
}

// End finishes a call on the caller's initiative. The call completes, the
// conversation gets its duration, and a fresh contact is marked contacted.
func (a *Agent) End(ctx context.Context, tenantID, callID string) (calls.Call, error) {
	call, err := a.calls.Transition(tenantID, callID, calls.StatusCompleted)
	if err != nil {
		if errors.Is(err, calls.ErrBadTransition) {
			return calls.Call{}, ErrCallFinished
		}
		return calls.Call{}, err
	}
	a.releaseCap(ctx, tenantID)

	if convo, cerr := a.convos.GetByCall(tenantID, callID); cerr == nil {
		if _, derr := a.convos.SetDuration(tenantID, convo.ID, call.DurationSeconds); derr != nil {
			a.log.Warn("duration write failed", "call_id", callID, "error", derr)
		}
	}

	if contact, cerr := a.contacts.Get(tenantID, call.ContactID); cerr == nil {
		if contact.Status == contacts.StatusNew {
			if _, serr := a.contacts.UpdateStatus(tenantID, contact.ID, contacts.StatusContacted); serr != nil {
				a.log.Warn("contact status update failed", "contact_id", contact.ID, "error", serr)
			}
		}
	}

	a.log.Info("call ended",
		"tenant_id", tenantID,
		"call_id", callID,
		"duration_seconds", call.DurationSeconds)
	return call, nil
}

// Status reports the call and its conversation so far.
func (a *Agent) Status(tenantID, callID string) (calls.Call, conversations.Conversation, error) {
	call, err := a.calls.Get(tenantID, callID)
	if err != nil {
		return calls.Call{}, conversations.Conversation{}, err
	}
	convo, err := a.convos.GetByCall(tenantID, callID)
	if err != nil {
		return calls.Call{}, conversations.Conversation{}, err
	}
	return call, convo, nil
}

func (a *Agent) failCall(tenantID, callID, note string) {
	if _, err := a.calls.Transition(tenantID, callID, calls.StatusFailed); err != nil {
		a.log.Warn("fail transition rejected", "call_id", callID, "error", err)
		return
	}
	if _, err := a.calls.SetNotes(tenantID, callID, note); err != nil {
		a.log.Warn("note write failed", "call_id", callID, "error", err)
	}
	a.log.Warn("call failed", "tenant_id", tenantID, "call_id", callID, "reason", note)
}

func (a *Agent) acquireCap(ctx context.Context, tenantID string) error {
	if a.rdb == nil || a.cfg.MaxConcurrentCalls <= 0 {
		return nil
	}
	ok, err := utils.AcquireConcurrencyCap(ctx, a.rdb, capKey(tenantID), a.cfg.MaxConcurrentCalls, a.cfg.CapTTL)
	if err != nil {
		return fmt.Errorf("concurrency cap: %w", err)
	}
	if !ok {
		return ErrConcurrencyCap
	}
	return nil
}

func (a *Agent) releaseCap(ctx context.Context, tenantID string) {
	if a.rdb == nil || a.cfg.MaxConcurrentCalls <= 0 {
		return
	}
	if err := utils.ReleaseConcurrencyCap(ctx, a.rdb, capKey(tenantID)); err != nil {
		a.log.Warn("cap release failed", "tenant_id", tenantID, "error", err)
	}
}

func capKey(tenantID string) string { return "cap:calls:" + tenantID }

func (a *Agent) transcribe(ctx context.Context, audio []byte) (string, error) {
	var text string
	err := a.withRetry(ctx, func() error {
		var err error
		text, err = a.stt.Transcribe(ctx, audio)
		return err
	})
	return text, err
}

func (a *Agent) synthesize(ctx context.Context, text string) ([]byte, error) {
	if a.tts == nil {
		return nil, nil
	}
	var audio []byte
	err := a.withRetry(ctx, func() error {
		var err error
		audio, err = a.tts.Synthesize(ctx, text)
		return err
	})
	return audio, err
}

func (a *Agent) respond(ctx context.Context, req speech.RespondRequest) (string, error) {
	var out string
	err := a.withRetry(ctx, func() error {
		var err error
		out, err = a.responder.Respond(ctx, req)
		return err
	})
	return out, err
}

// withRetry retries a speech-service call up to the fixed attempt cap with a
// fixed pause between attempts. The last error is returned on exhaustion.
func (a *Agent) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= a.cfg.RetryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == a.cfg.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		a.sleep(a.cfg.RetrySleep)
	}
	return err
}

// contactContext exposes contact attributes as script placeholders.
func contactContext(c contacts.Contact) map[string]string {
	out := map[string]string{
		"contact_name": c.FullName(),
		"first_name":   c.FirstName,
		"last_name":    c.LastName,
		"company":      c.Company,
		"phone_number": c.PhoneNumber,
	}
	for k, v := range c.CustomFields {
		out[k] = v
	}
	return out
}

func userLines(c conversations.Conversation) []string {
	out := make([]string, 0, len(c.Transcript))
	for _, t := range c.Transcript {
		if t.Speaker == conversations.SpeakerUser {
			out = append(out, t.Text)
		}
	}
	return out
}
