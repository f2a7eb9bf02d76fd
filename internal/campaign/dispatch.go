package campaign

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/ingest"
)

// DefaultDelay is waited after every recipient, success or failure.
// A crude self-imposed rate limit with no adaptivity to server feedback.
const DefaultDelay = 500 * time.Millisecond

// Sender sends one campaign email. Satisfied by *api.Client.
type Sender interface {
	SendEmail(ctx context.Context, req api.SendEmailRequest) error
}

// Progress is the in-memory accounting for a running campaign.
// Invariant: Sent+Failed <= Total, equal only at the terminal state.
type Progress struct {
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
	Total          int    `json:"total"`
	CurrentAccount string `json:"current_account"`
}

// Done reports whether every recipient has been attempted.
func (p Progress) Done() bool {
	return p.Sent+p.Failed == p.Total
}

// Result is the outcome of one recipient's send attempt.
type Result struct {
	Recipient ingest.Recipient
	AccountID int64
	Err       error
}

// Dispatcher executes a campaign against the remote send endpoint, one
// recipient at a time. Exactly one request is in flight at any moment,
// by construction.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	delay  time.Duration

	// OnProgress is invoked after every mutation of the progress
	// counters and before each send for the current-account update.
	OnProgress func(Progress)
	// OnResult is invoked once per recipient with the attempt outcome.
	OnResult func(Result)
}

// NewDispatcher creates a dispatcher. A zero delay selects DefaultDelay.
func NewDispatcher(sender Sender, logger *slog.Logger, delay time.Duration) *Dispatcher {
	if delay == 0 {
		delay = DefaultDelay
	}
	return &Dispatcher{
		sender: sender,
		logger: logger.With("component", "dispatcher"),
		delay:  delay,
	}
}

// Run processes every recipient exactly once, rotating through the
// configured accounts by position. A per-recipient failure is counted
// and logged, never surfaced individually, and never aborts the loop.
// Cancelling ctx (the host closing) stops the loop and abandons the
// remaining recipients; there is no resumption.
func (d *Dispatcher) Run(ctx context.Context, recipients []ingest.Recipient, accounts []api.SendingAccount, cfg *Config) (Progress, error) {
	// The guard is re-validated here, not trusted from the wizard.
	if err := cfg.Validate(len(recipients)); err != nil {
		return Progress{}, err
	}

	accountsToUse := cfg.AccountIDs
	progress := Progress{Total: len(recipients)}

	labels := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		labels[a.ID] = a.EmailAddress
	}

	for i, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		// Deterministic round-robin keyed purely by position.
		accountID := accountsToUse[i%len(accountsToUse)]

		progress.CurrentAccount = labels[accountID]
		d.publish(progress)

		err := d.sender.SendEmail(ctx, api.SendEmailRequest{
			To:        recipient.Email,
			Name:      recipient.Name,
			Subject:   cfg.Subject,
			Body:      cfg.HTMLBody,
			FromName:  cfg.SenderName,
			AccountID: accountID,
		})
		if err != nil {
			progress.Failed++
			d.logger.Debug("failed to send email", "to", recipient.Email, "account_id", accountID, "error", err)
		} else {
			progress.Sent++
		}

		if d.OnResult != nil {
			d.OnResult(Result{Recipient: recipient, AccountID: accountID, Err: err})
		}
		d.publish(progress)

		// Fixed delay regardless of outcome.
		if err := d.sleep(ctx); err != nil {
			return progress, err
		}
	}

	d.logger.Info("campaign completed", "sent", progress.Sent, "failed", progress.Failed, "total", progress.Total)
	return progress, nil
}

func (d *Dispatcher) publish(p Progress) {
	if d.OnProgress != nil {
		d.OnProgress(p)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) error {
	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
