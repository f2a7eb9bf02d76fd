package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewRunRepository(db)
}

func TestNewUnopenablePath(t *testing.T) {
	// A directory is not a valid database file; the first statement
	// fails and New must return the error instead of a half-open DB.
	if _, err := New(t.TempDir()); err == nil {
		t.Fatal("expected error opening a directory as database")
	}
}

func TestRunLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	run := &CampaignRun{
		Subject:    "Welcome",
		SenderName: "Ops",
		AccountIDs: []int64{4, 7},
		Total:      3,
	}
	if err := repo.Create(run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "Welcome" || got.Total != 3 {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.AccountIDs) != 2 || got.AccountIDs[0] != 4 || got.AccountIDs[1] != 7 {
		t.Errorf("unexpected account ids: %v", got.AccountIDs)
	}
	if got.CompletedAt != nil {
		t.Error("run should not be completed yet")
	}

	if err := repo.Complete(run.ID, 2, 1); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err = repo.Get(run.ID)
	if err != nil {
		t.Fatalf("Get after complete: %v", err)
	}
	if got.Sent != 2 || got.Failed != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.Sent, got.Failed)
	}
	if got.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
}

func TestCompleteUnknownRun(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Complete("nope", 1, 0)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestGetUnknownRun(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.Get("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestSendRecords(t *testing.T) {
	repo := newTestRepo(t)

	run := &CampaignRun{Subject: "Digest", Total: 2}
	if err := repo.Create(run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	records := []*SendRecord{
		{RunID: run.ID, Email: "a@example.com", Name: "Ann", AccountID: 4, Status: StatusSent},
		{RunID: run.ID, Email: "b@example.com", AccountID: 7, Status: StatusFailed, Error: "API error: quota exceeded"},
	}
	for _, rec := range records {
		if err := repo.RecordSend(rec); err != nil {
			t.Fatalf("RecordSend: %v", err)
		}
	}

	got, err := repo.Records(run.ID)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(got))
	}
	if got[0].Email != "a@example.com" || got[0].Status != StatusSent {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[1].Error != "API error: quota exceeded" {
		t.Errorf("error message = %q", got[1].Error)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)

	for _, subject := range []string{"first", "second", "third"} {
		if err := repo.Create(&CampaignRun{Subject: subject, Total: 1}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	runs, err := repo.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
}
