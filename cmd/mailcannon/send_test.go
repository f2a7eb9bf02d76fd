package main

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/campaign"
	"github.com/mailcannon/mailcannon/internal/store"
)

func newTestRepo(t *testing.T) *store.RunRepository {
	t.Helper()

	db, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store.NewRunRepository(db)
}

func TestFinalizeRunCompleted(t *testing.T) {
	repo := newTestRepo(t)

	run := &store.CampaignRun{Subject: "Welcome", Total: 3}
	if err := repo.Create(run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p := campaign.Progress{Sent: 2, Failed: 1, Total: 3}
	if err := finalizeRun(repo, run.ID, p, nil); err != nil {
		t.Fatalf("finalizeRun: %v", err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("finished run should carry a completion timestamp")
	}
	if got.Sent != 2 || got.Failed != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.Sent, got.Failed)
	}
}

func TestFinalizeRunInterruptedStaysOpen(t *testing.T) {
	repo := newTestRepo(t)

	run := &store.CampaignRun{Subject: "Welcome", Total: 3}
	if err := repo.Create(run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	p := campaign.Progress{Sent: 1, Total: 3}
	if err := finalizeRun(repo, run.ID, p, context.Canceled); err != nil {
		t.Fatalf("finalizeRun: %v", err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CompletedAt != nil {
		t.Error("interrupted run must not be marked completed")
	}
	if got.Sent != 0 || got.Failed != 0 {
		t.Errorf("interrupted run counters should stay at create-time values, got %d/%d", got.Sent, got.Failed)
	}
}

func TestSelectAccountsDeduplicatesFlags(t *testing.T) {
	accounts := []api.SendingAccount{{ID: 1}, {ID: 2}}

	sendAccounts = []int64{1, 1, 2}
	sendMultiAccount = true
	t.Cleanup(func() {
		sendAccounts = nil
		sendMultiAccount = false
	})

	var cfg campaign.Config
	if err := selectAccounts(&cfg, accounts); err != nil {
		t.Fatalf("selectAccounts: %v", err)
	}
	if want := []int64{1, 2}; !reflect.DeepEqual(cfg.AccountIDs, want) {
		t.Errorf("AccountIDs = %v, want %v", cfg.AccountIDs, want)
	}
	if !cfg.MultiAccount {
		t.Error("expected multi-account mode")
	}
}

func TestSelectAccountsSingle(t *testing.T) {
	accounts := []api.SendingAccount{{ID: 1}, {ID: 2}}

	sendAccounts = []int64{2}
	t.Cleanup(func() { sendAccounts = nil })

	var cfg campaign.Config
	if err := selectAccounts(&cfg, accounts); err != nil {
		t.Fatalf("selectAccounts: %v", err)
	}
	if want := []int64{2}; !reflect.DeepEqual(cfg.AccountIDs, want) {
		t.Errorf("AccountIDs = %v, want %v", cfg.AccountIDs, want)
	}
	if cfg.MultiAccount {
		t.Error("single selection should not enable multi-account mode")
	}
}

func TestSelectAccountsUnknownID(t *testing.T) {
	accounts := []api.SendingAccount{{ID: 1}}

	sendAccounts = []int64{9}
	t.Cleanup(func() { sendAccounts = nil })

	var cfg campaign.Config
	if err := selectAccounts(&cfg, accounts); err == nil {
		t.Fatal("expected error for unknown account id")
	}
}
