package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailcannon/mailcannon/internal/config"
	"github.com/mailcannon/mailcannon/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past campaign runs",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show per-recipient results of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*store.RunRepository, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := store.New(filepath.Join(cfg.Storage.Dir, "history.db"))
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	return store.NewRunRepository(db), func() { db.Close() }, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo, closeDB, err := openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := repo.List(historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No campaign runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSUBJECT\tTOTAL\tSENT\tFAILED\tSTATUS")
	for _, run := range runs {
		status := "interrupted"
		if run.CompletedAt != nil {
			status = "completed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.StartedAt.Format("2006-01-02 15:04"), run.Subject,
			run.Total, run.Sent, run.Failed, status)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	repo, closeDB, err := openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Subject: %s\n", run.Subject)
	fmt.Printf("Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Counts:  %d sent, %d failed of %d\n\n", run.Sent, run.Failed, run.Total)

	records, err := repo.Records(run.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tACCOUNT\tSTATUS\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", rec.Email, rec.AccountID, rec.Status, rec.Error)
	}
	return w.Flush()
}
