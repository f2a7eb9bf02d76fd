package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/campaign"
	"github.com/mailcannon/mailcannon/internal/ingest"
	"github.com/mailcannon/mailcannon/internal/metrics"
	"github.com/mailcannon/mailcannon/internal/store"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Run a campaign: import, configure, dispatch",
	Long: `Imports recipients from a CSV or XLSX file, applies the campaign
configuration and dispatches one email per recipient through the backend,
rotating across the selected sending accounts.`,
	RunE: runSend,
}

var (
	sendFile         string
	sendAccounts     []int64
	sendTemplateID   int64
	sendSubject      string
	sendSenderName   string
	sendBodyFile     string
	sendMultiAccount bool
	sendDelay        time.Duration
	sendStatusAddr   string
	sendYes          bool
)

func init() {
	sendCmd.Flags().StringVar(&sendFile, "file", "", "Recipient file (.csv, .xlsx)")
	sendCmd.Flags().Int64SliceVar(&sendAccounts, "account", nil, "Sending account ID (repeatable)")
	sendCmd.Flags().Int64Var(&sendTemplateID, "template", 0, "Template ID to apply")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "Email subject (overrides template)")
	sendCmd.Flags().StringVar(&sendSenderName, "sender-name", "", "From name")
	sendCmd.Flags().StringVar(&sendBodyFile, "body-file", "", "File with the HTML body (overrides template)")
	sendCmd.Flags().BoolVar(&sendMultiAccount, "multi-account", false, "Rotate across all selected accounts")
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0, "Delay between sends (default from config)")
	sendCmd.Flags().StringVar(&sendStatusAddr, "status-addr", "", "Serve /metrics and /progress on this address during the run")
	sendCmd.Flags().BoolVar(&sendYes, "yes", false, "Skip the confirmation prompt")
	sendCmd.MarkFlagRequired("file")
	sendCmd.MarkFlagRequired("account")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Import.
	recipients, err := ingest.ReadFile(sendFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sendFile, err)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients in %s: ensure the file has an \"Email\" column", sendFile)
	}
	fmt.Printf("Imported %d recipients from %s\n", len(recipients), filepath.Base(sendFile))

	wizard := campaign.NewWizard()
	if err := wizard.SetRecipients(recipients); err != nil {
		return err
	}
	if err := wizard.Advance(); err != nil {
		return err
	}

	// Configure.
	accounts, err := e.client.ListAccounts(ctx)
	if err != nil {
		return e.authErr(err)
	}
	if err := selectAccounts(wizard.Config(), accounts); err != nil {
		return err
	}

	if sendTemplateID != 0 {
		tmpl, err := findTemplate(ctx, e, sendTemplateID)
		if err != nil {
			return err
		}
		wizard.Config().ApplyTemplate(tmpl)
	}

	cfg := wizard.Config()
	if sendSubject != "" {
		cfg.Subject = sendSubject
	}
	if sendSenderName != "" {
		cfg.SenderName = sendSenderName
	}
	if sendBodyFile != "" {
		body, err := os.ReadFile(sendBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body file: %w", err)
		}
		cfg.HTMLBody = string(body)
	}

	if err := wizard.Advance(); err != nil {
		return guardError(err)
	}

	// Review.
	printReview(cfg, accounts, len(recipients))
	if !sendYes {
		answer, err := promptLine("Proceed? [y/N] ")
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Aborted")
			return nil
		}
	}
	if err := wizard.Advance(); err != nil {
		return guardError(err)
	}

	// Dispatch.
	progress, err := dispatch(ctx, e, wizard)
	if errors.Is(err, context.Canceled) {
		fmt.Printf("\nInterrupted: %d sent, %d failed, %d not attempted\n",
			progress.Sent, progress.Failed, progress.Total-progress.Sent-progress.Failed)
		return nil
	}
	if err != nil {
		return err
	}
	if err := wizard.Advance(); err != nil {
		return err
	}

	fmt.Printf("\nCampaign finished: %d sent, %d failed of %d\n", progress.Sent, progress.Failed, progress.Total)

	// Refresh account quotas for the closing summary.
	if refreshed, err := e.client.ListAccounts(ctx); err == nil {
		used := make(map[int64]bool, len(cfg.AccountIDs))
		for _, id := range cfg.AccountIDs {
			used[id] = true
		}
		for _, a := range refreshed {
			if used[a.ID] {
				fmt.Printf("  %s: %d/%d sent today\n", a.EmailAddress, a.EmailsSentToday, a.DailyLimit)
			}
		}
	}

	return nil
}

// selectAccounts applies the --account flags to the campaign config,
// rejecting IDs the backend does not know.
func selectAccounts(cfg *campaign.Config, accounts []api.SendingAccount) error {
	known := make(map[int64]bool, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
	}
	for _, id := range sendAccounts {
		if !known[id] {
			return fmt.Errorf("account %d not found (see 'mailcannon accounts list')", id)
		}
	}

	if sendMultiAccount || len(sendAccounts) > 1 {
		cfg.MultiAccount = true
		// The flag may repeat an ID; toggling it twice would deselect.
		seen := make(map[int64]bool, len(sendAccounts))
		for _, id := range sendAccounts {
			if seen[id] {
				continue
			}
			seen[id] = true
			cfg.ToggleAccount(id)
		}
		return nil
	}

	cfg.SelectAccount(sendAccounts[0])
	return nil
}

func findTemplate(ctx context.Context, e *env, id int64) (*api.Template, error) {
	list, err := e.client.ListTemplates(ctx, "", "")
	if err != nil {
		return nil, e.authErr(err)
	}
	for _, group := range [][]api.Template{list.SystemTemplates, list.UserTemplates} {
		for i := range group {
			if group[i].ID == id {
				return &group[i], nil
			}
		}
	}
	return nil, fmt.Errorf("template %d not found (see 'mailcannon templates list')", id)
}

func printReview(cfg *campaign.Config, accounts []api.SendingAccount, recipientCount int) {
	labels := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		labels[a.ID] = a.EmailAddress
	}
	var selected []string
	for _, id := range cfg.AccountIDs {
		selected = append(selected, labels[id])
	}

	fmt.Println()
	fmt.Printf("Recipients: %d\n", recipientCount)
	fmt.Printf("Accounts:   %s\n", strings.Join(selected, ", "))
	fmt.Printf("Subject:    %s\n", cfg.Subject)
	if cfg.SenderName != "" {
		fmt.Printf("From name:  %s\n", cfg.SenderName)
	}
	fmt.Printf("Body:       %d bytes\n", len(cfg.HTMLBody))
}

// dispatch wires the loop to metrics, the history store and the
// optional status server, then runs it.
func dispatch(ctx context.Context, e *env, wizard *campaign.Wizard) (campaign.Progress, error) {
	recipients := wizard.Recipients()
	cfg := wizard.Config()

	m := metrics.New()
	m.RecipientsTotal.Set(float64(len(recipients)))
	m.RecipientsPending.Set(float64(len(recipients)))
	m.DispatchInFlight.Set(1)
	defer m.DispatchInFlight.Set(0)

	var mu sync.Mutex
	snap := metrics.Snapshot{Running: true, Total: len(recipients), Subject: cfg.Subject}

	if addr := statusAddr(e); addr != "" {
		srv := metrics.NewServer(m, func() metrics.Snapshot {
			mu.Lock()
			defer mu.Unlock()
			return snap
		}, addr, e.logger)

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	repo, closeDB, err := openHistory()
	if err != nil {
		return campaign.Progress{}, err
	}
	defer closeDB()

	run := &store.CampaignRun{
		Subject:    cfg.Subject,
		SenderName: cfg.SenderName,
		AccountIDs: cfg.AccountIDs,
		Total:      len(recipients),
	}
	if err := repo.Create(run); err != nil {
		return campaign.Progress{}, err
	}

	delay := sendDelay
	if delay == 0 {
		delay = e.cfg.Dispatch.Delay
	}

	dispatcher := campaign.NewDispatcher(timedSender{e.client, m}, e.logger, delay)

	attempted := 0
	dispatcher.OnResult = func(r campaign.Result) {
		attempted++
		label := strconv.FormatInt(r.AccountID, 10)
		rec := &store.SendRecord{
			RunID:     run.ID,
			Email:     r.Recipient.Email,
			Name:      r.Recipient.Name,
			AccountID: r.AccountID,
		}
		if r.Err != nil {
			m.EmailsFailedTotal.WithLabelValues(label).Inc()
			rec.Status = store.StatusFailed
			rec.Error = r.Err.Error()
			// Error detail goes to history and the debug log only.
			fmt.Printf("[%d/%d] failed %s\n", attempted, len(recipients), r.Recipient.Email)
		} else {
			m.EmailsSentTotal.WithLabelValues(label).Inc()
			rec.Status = store.StatusSent
			fmt.Printf("[%d/%d] sent %s\n", attempted, len(recipients), r.Recipient.Email)
		}
		m.RecipientsPending.Set(float64(len(recipients) - attempted))
		if err := repo.RecordSend(rec); err != nil {
			e.logger.Warn("failed to record send", "error", err)
		}
	}
	dispatcher.OnProgress = func(p campaign.Progress) {
		mu.Lock()
		snap.Sent = p.Sent
		snap.Failed = p.Failed
		snap.CurrentAccount = p.CurrentAccount
		mu.Unlock()
	}

	accountList, err := e.client.ListAccounts(ctx)
	if err != nil {
		// Labels are cosmetic, the run proceeds without them.
		e.logger.Warn("failed to refresh accounts", "error", err)
	}

	progress, runErr := dispatcher.Run(ctx, recipients, accountList, cfg)

	mu.Lock()
	snap.Running = false
	snap.Sent = progress.Sent
	snap.Failed = progress.Failed
	mu.Unlock()

	if err := finalizeRun(repo, run.ID, progress, runErr); err != nil {
		e.logger.Warn("failed to finalize run record", "error", err)
	}

	return progress, runErr
}

// finalizeRun closes out the history row. A run that was cut short
// keeps a null completion timestamp, so history reports it as
// interrupted with the partial counters.
func finalizeRun(repo *store.RunRepository, runID string, p campaign.Progress, runErr error) error {
	if runErr != nil {
		return nil
	}
	return repo.Complete(runID, p.Sent, p.Failed)
}

// timedSender observes per-request latency around the real client.
type timedSender struct {
	inner campaign.Sender
	m     *metrics.Metrics
}

func (s timedSender) SendEmail(ctx context.Context, req api.SendEmailRequest) error {
	start := time.Now()
	err := s.inner.SendEmail(ctx, req)
	s.m.SendDurationSeconds.Observe(time.Since(start).Seconds())
	return err
}

func statusAddr(e *env) string {
	if sendStatusAddr != "" {
		return sendStatusAddr
	}
	return e.cfg.Status.ListenAddr
}

// guardError rewrites the dispatch guard sentinels into actionable
// CLI messages.
func guardError(err error) error {
	switch {
	case errors.Is(err, campaign.ErrNoRecipients):
		return errors.New("no recipients imported")
	case errors.Is(err, campaign.ErrNoAccounts):
		return errors.New("select at least one sending account (--account)")
	case errors.Is(err, campaign.ErrNoSubject):
		return errors.New("a subject is required (--subject or --template)")
	case errors.Is(err, campaign.ErrNoBody):
		return errors.New("an email body is required (--body-file or --template)")
	}
	return err
}
