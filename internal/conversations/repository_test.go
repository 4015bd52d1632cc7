package conversations

import (
	"errors"
	"testing"

	"voicecrm/internal/store"
)

func openRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return r
}

func start(t *testing.T, r *Repository, tenant string) Conversation {
	t.Helper()
	c, err := r.Create(tenant, Conversation{
		ContactID:  "contact-1",
		CampaignID: "campaign-1",
		CallID:     "call-1",
		Stage:      "intro",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func TestAppendTurnKeepsOrder(t *testing.T) {
	r := openRepo(t)
	c := start(t, r, "acme")

	r.AppendTurn("acme", c.ID, SpeakerAgent, "hello")
	r.AppendTurn("acme", c.ID, SpeakerUser, "hi")
	got, err := r.AppendTurn("acme", c.ID, SpeakerUser, "who is this?")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if len(got.Transcript) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got.Transcript))
	}
	if got.Transcript[0].Text != "hello" || got.Transcript[2].Text != "who is this?" {
		t.Fatalf("turns out of order: %+v", got.Transcript)
	}
	if got.UserTurns() != 2 {
		t.Fatalf("expected 2 user turns, got %d", got.UserTurns())
	}
}

func TestSetStageRecordsHistory(t *testing.T) {
	r := openRepo(t)
	c := start(t, r, "acme")

	got, err := r.SetStage("acme", c.ID, "pitch", "keyword:yes")
	if err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if got.Stage != "pitch" {
		t.Fatalf("expected pitch, got %q", got.Stage)
	}
	if len(got.StageHistory) != 1 || got.StageHistory[0].From != "intro" || got.StageHistory[0].To != "pitch" {
		t.Fatalf("unexpected history: %+v", got.StageHistory)
	}

	// Setting the same stage again is a no-op, not a history entry.
	got, _ = r.SetStage("acme", c.ID, "pitch", "again")
	if len(got.StageHistory) != 1 {
		t.Fatalf("no-op stage set must not grow history: %+v", got.StageHistory)
	}
}

func TestMergeCollectedData(t *testing.T) {
	r := openRepo(t)
	c := start(t, r, "acme")

	r.MergeCollectedData("acme", c.ID, map[string]string{"email": "a@b.test"})
	got, err := r.MergeCollectedData("acme", c.ID, map[string]string{"budget": "10k"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got.CollectedData["email"] != "a@b.test" || got.CollectedData["budget"] != "10k" {
		t.Fatalf("unexpected collected data: %v", got.CollectedData)
	}
}

func TestTenantScoping(t *testing.T) {
	r := openRepo(t)
	c := start(t, r, "acme")

	if _, err := r.Get("beta", c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant get must be not found, got %v", err)
	}
	if _, err := r.AppendTurn("beta", c.ID, SpeakerUser, "hi"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant append must be not found, got %v", err)
	}
	if _, err := r.GetByCall("acme", "call-1"); err != nil {
		t.Fatalf("get by call: %v", err)
	}
	if _, err := r.GetByCall("beta", "call-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-tenant get by call must be not found, got %v", err)
	}
}
