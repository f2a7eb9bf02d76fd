package campaign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/ingest"
)

// fakeSender records every request and fails the attempts listed in
// failOn (1-based).
type fakeSender struct {
	requests []api.SendEmailRequest
	failOn   map[int]bool
}

func (f *fakeSender) SendEmail(ctx context.Context, req api.SendEmailRequest) error {
	f.requests = append(f.requests, req)
	if f.failOn[len(f.requests)] {
		return errors.New("boom")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecipients(n int) []ingest.Recipient {
	rs := make([]ingest.Recipient, n)
	for i := range rs {
		rs[i] = ingest.Recipient{Email: string(rune('a'+i)) + "@example.com"}
	}
	return rs
}

func testAccounts(ids ...int64) []api.SendingAccount {
	accounts := make([]api.SendingAccount, len(ids))
	for i, id := range ids {
		accounts[i] = api.SendingAccount{ID: id, EmailAddress: string(rune('a'+int(id))) + "@sender.com"}
	}
	return accounts
}

func testConfig(accountIDs ...int64) *Config {
	return &Config{
		AccountIDs: accountIDs,
		Subject:    "Hello",
		HTMLBody:   "<p>Hi</p>",
		SenderName: "Acme",
	}
}

func TestRoundRobinDeterminism(t *testing.T) {
	// 3 accounts, 7 recipients: A,B,C,A,B,C,A.
	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	progress, err := d.Run(context.Background(), testRecipients(7), testAccounts(1, 2, 3), testConfig(1, 2, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !progress.Done() {
		t.Errorf("progress = %+v, want terminal state", progress)
	}

	want := []int64{1, 2, 3, 1, 2, 3, 1}
	for i, req := range sender.requests {
		if req.AccountID != want[i] {
			t.Errorf("request[%d].AccountID = %d, want %d", i, req.AccountID, want[i])
		}
	}
}

func TestSingleAccountNoRotation(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	if _, err := d.Run(context.Background(), testRecipients(4), testAccounts(5), testConfig(5)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, req := range sender.requests {
		if req.AccountID != 5 {
			t.Errorf("request[%d].AccountID = %d, want 5", i, req.AccountID)
		}
	}
}

func TestAllSucceed(t *testing.T) {
	// 2 recipients, 1 account, both succeed.
	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	progress, err := d.Run(context.Background(), testRecipients(2), testAccounts(1), testConfig(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if progress.Sent != 2 || progress.Failed != 0 || progress.Total != 2 {
		t.Errorf("progress = %+v, want {2 0 2}", progress)
	}
}

func TestPartialFailure(t *testing.T) {
	// 5 recipients, accounts [X=10, Y=11], attempts 2 and 4 fail.
	sender := &fakeSender{failOn: map[int]bool{2: true, 4: true}}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	progress, err := d.Run(context.Background(), testRecipients(5), testAccounts(10, 11), testConfig(10, 11))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if progress.Sent != 3 || progress.Failed != 2 || progress.Total != 5 {
		t.Errorf("progress = %+v, want {3 2 5}", progress)
	}

	want := []int64{10, 11, 10, 11, 10}
	for i, req := range sender.requests {
		if req.AccountID != want[i] {
			t.Errorf("request[%d].AccountID = %d, want %d", i, req.AccountID, want[i])
		}
	}
}

func TestFailureNeverAbortsLoop(t *testing.T) {
	sender := &fakeSender{failOn: map[int]bool{1: true, 2: true, 3: true}}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	progress, err := d.Run(context.Background(), testRecipients(3), testAccounts(1), testConfig(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sender.requests) != 3 {
		t.Errorf("attempts = %d, want 3 (every recipient attempted exactly once)", len(sender.requests))
	}
	if progress.Sent != 0 || progress.Failed != 3 {
		t.Errorf("progress = %+v, want {0 3 3}", progress)
	}
}

func TestRecipientsProcessedInOrder(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	recipients := []ingest.Recipient{
		{Email: "first@x.com", Name: "First"},
		{Email: "second@x.com", Name: "Second"},
		{Email: "third@x.com", Name: "Third"},
	}
	if _, err := d.Run(context.Background(), recipients, testAccounts(1), testConfig(1)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, req := range sender.requests {
		if req.To != recipients[i].Email || req.Name != recipients[i].Name {
			t.Errorf("request[%d] = %s/%s, want %s/%s", i, req.To, req.Name, recipients[i].Email, recipients[i].Name)
		}
	}
}

func TestGuardRevalidatedBeforeDispatch(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, testLogger(), time.Nanosecond)

	tests := []struct {
		name    string
		cfg     *Config
		count   int
		wantErr error
	}{
		{"no recipients", testConfig(1), 0, ErrNoRecipients},
		{"no accounts", &Config{Subject: "s", HTMLBody: "b"}, 2, ErrNoAccounts},
		{"no subject", &Config{AccountIDs: []int64{1}, HTMLBody: "b"}, 2, ErrNoSubject},
		{"no body", &Config{AccountIDs: []int64{1}, Subject: "s"}, 2, ErrNoBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Run(context.Background(), testRecipients(tt.count), testAccounts(1), tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProgressInvariant(t *testing.T) {
	sender := &fakeSender{failOn: map[int]bool{3: true}}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	var snapshots []Progress
	d.OnProgress = func(p Progress) { snapshots = append(snapshots, p) }

	if _, err := d.Run(context.Background(), testRecipients(4), testAccounts(1, 2), testConfig(1, 2)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, p := range snapshots {
		if p.Sent+p.Failed > p.Total {
			t.Errorf("snapshot[%d] = %+v violates sent+failed <= total", i, p)
		}
	}
	last := snapshots[len(snapshots)-1]
	if !last.Done() {
		t.Errorf("final snapshot = %+v, want terminal state", last)
	}
}

func TestCurrentAccountPublishedBeforeSend(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	var firstLabel string
	d.OnProgress = func(p Progress) {
		if firstLabel == "" {
			firstLabel = p.CurrentAccount
		}
	}

	accounts := []api.SendingAccount{{ID: 1, EmailAddress: "x@sender.com"}}
	if _, err := d.Run(context.Background(), testRecipients(1), accounts, testConfig(1)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if firstLabel != "x@sender.com" {
		t.Errorf("first published account = %q, want x@sender.com", firstLabel)
	}
}

func TestCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sender := &fakeSender{}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)
	d.OnResult = func(Result) {
		// Simulate the host closing mid-campaign.
		cancel()
	}

	progress, err := d.Run(ctx, testRecipients(5), testAccounts(1), testConfig(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(sender.requests) != 1 {
		t.Errorf("attempts = %d, want 1 (loop stopped after cancellation)", len(sender.requests))
	}
	if progress.Done() {
		t.Errorf("progress = %+v, should not reach terminal state", progress)
	}
}

func TestResultHookSeesOutcome(t *testing.T) {
	sender := &fakeSender{failOn: map[int]bool{2: true}}
	d := NewDispatcher(sender, testLogger(), time.Nanosecond)

	var results []Result
	d.OnResult = func(r Result) { results = append(results, r) }

	if _, err := d.Run(context.Background(), testRecipients(2), testAccounts(7), testConfig(7)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("results[0].Err = %v, want nil", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("results[1].Err = nil, want failure")
	}
	if results[0].AccountID != 7 {
		t.Errorf("results[0].AccountID = %d, want 7", results[0].AccountID)
	}
}
