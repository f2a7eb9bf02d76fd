package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sending statistics",
	RunE:  runStats,
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Server-side notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE:  runNotificationsList,
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsDelete,
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all notifications",
	RunE:  runNotificationsClear,
}

var statsPeriod string

func init() {
	statsCmd.Flags().StringVar(&statsPeriod, "period", "30d", "Reporting period (7d, 30d, 90d)")

	notificationsCmd.AddCommand(notificationsListCmd, notificationsDeleteCmd, notificationsClearCmd)
	rootCmd.AddCommand(statsCmd, notificationsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	stats, err := e.client.GetStatistics(cmd.Context(), statsPeriod)
	if err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Period: %s\n", statsPeriod)
	fmt.Printf("Sent:   %d\n", stats.TotalSent)
	fmt.Printf("Opened: %d (%.1f%%)\n", stats.TotalOpened, stats.OpenRate)

	if len(stats.AccountStats) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tSENT\tOPENED")
		for _, a := range stats.AccountStats {
			fmt.Fprintf(w, "%s\t%d\t%d\n", a.EmailAddress, a.Sent, a.Opened)
		}
		w.Flush()
	}

	if len(stats.Daily) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSENT")
		for _, d := range stats.Daily {
			fmt.Fprintf(w, "%s\t%d\n", d.Date, d.Sent)
		}
		w.Flush()
	}

	return nil
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	notes, err := e.client.ListNotifications(cmd.Context())
	if err != nil {
		return e.authErr(err)
	}

	if len(notes) == 0 {
		fmt.Println("No notifications")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTITLE\tMESSAGE")
	for _, n := range notes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Title, n.Message)
	}
	return w.Flush()
}

func runNotificationsDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid notification id %q", args[0])
	}

	if err := e.client.DeleteNotification(cmd.Context(), id); err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Notification %d deleted\n", id)
	return nil
}

func runNotificationsClear(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	if err := e.client.ClearNotifications(cmd.Context()); err != nil {
		return e.authErr(err)
	}

	fmt.Println("Notifications cleared")
	return nil
}
