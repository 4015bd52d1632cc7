package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type note struct {
	Meta
	OwnerID string `json:"owner_id"`
	Body    string `json:"body"`
}

func openNotes(t *testing.T) *Collection[note, *note] {
	t.Helper()
	c, err := Open[note, *note](filepath.Join(t.TempDir(), "notes.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestCreateAssignsIdentityAndTimestamps(t *testing.T) {
	c := openNotes(t)
	now := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return now }

	rec, err := c.Create(note{Body: "hello"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if !rec.CreatedAt.Equal(now) || !rec.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %+v", rec.Meta)
	}

	got, err := c.Get(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hello" {
		t.Fatalf("expected stored body, got %q", got.Body)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	c := openNotes(t)
	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMutatesAndStampsUpdatedAt(t *testing.T) {
	c := openNotes(t)
	created := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return created }

	rec, err := c.Create(note{Body: "v1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	later := created.Add(time.Hour)
	c.clock = func() time.Time { return later }

	got, err := c.Update(rec.ID, func(n *note) { n.Body = "v2" })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Body != "v2" {
		t.Fatalf("expected mutated body, got %q", got.Body)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at must not change, got %v", got.CreatedAt)
	}

	if _, err := c.Update("missing", func(*note) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	c := openNotes(t)
	rec, _ := c.Create(note{Body: "x"})

	if err := c.Delete(rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := c.Delete(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFindPreservesInsertionOrder(t *testing.T) {
	c := openNotes(t)
	for _, b := range []string{"a", "b", "c"} {
		if _, err := c.Create(note{OwnerID: "t1", Body: b}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	c.Create(note{OwnerID: "t2", Body: "other"})

	got := c.Find(func(n note) bool { return n.OwnerID == "t1" })
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Body != want {
			t.Fatalf("expected %q at %d, got %q", want, i, got[i].Body)
		}
	}
}

func TestReopenRoundTripsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.json")

	c, err := Open[note, *note](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, err := c.Create(note{OwnerID: "t1", Body: "persisted"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reopened, err := Open[note, *note](path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(rec.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Body != "persisted" || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, rec)
	}
}

func TestOpenFailsClosedOnMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.json")

	// Malformed timestamp must fail the load, not be coerced.
	bad := `[{"id":"n1","created_at":"not-a-time","updated_at":"not-a-time","owner_id":"t1","body":"x"}]`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Open[note, *note](path); err == nil {
		t.Fatalf("expected load error for malformed timestamps")
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Open[note, *note](path); err == nil {
		t.Fatalf("expected load error for malformed json")
	}
}
