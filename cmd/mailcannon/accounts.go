package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/smtpcheck"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Sending account management",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sending accounts",
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a sending account",
	RunE:  runAccountsAdd,
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a sending account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsDelete,
}

var accountsTestCmd = &cobra.Command{
	Use:   "test [id]",
	Short: "Verify an account's SMTP credentials",
	Long:  `Connects to the account's SMTP server and authenticates with a prompted password. No email is sent.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsTest,
}

var (
	accountName     string
	accountEmail    string
	accountProvider string
	accountSMTPHost string
	accountSMTPPort int
)

func init() {
	accountsAddCmd.Flags().StringVar(&accountName, "name", "", "Display name")
	accountsAddCmd.Flags().StringVar(&accountEmail, "email", "", "Account email address")
	accountsAddCmd.Flags().StringVar(&accountProvider, "provider", "", "Provider label (gmail, outlook, ...)")
	accountsAddCmd.Flags().StringVar(&accountSMTPHost, "smtp-host", "", "SMTP server hostname")
	accountsAddCmd.Flags().IntVar(&accountSMTPPort, "smtp-port", 587, "SMTP server port")
	accountsAddCmd.MarkFlagRequired("email")
	accountsAddCmd.MarkFlagRequired("smtp-host")

	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsDeleteCmd, accountsTestCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	accounts, err := e.client.ListAccounts(cmd.Context())
	if err != nil {
		return e.authErr(err)
	}

	if len(accounts) == 0 {
		fmt.Println("No sending accounts configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tPROVIDER\tTODAY\tLIMIT\tACTIVE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%v\n",
			a.ID, a.EmailAddress, a.Provider, a.EmailsSentToday, a.DailyLimit, a.IsActive)
	}
	return w.Flush()
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	password, err := promptPassword("SMTP password: ")
	if err != nil {
		return err
	}

	req := api.AccountRequest{
		DisplayName:  accountName,
		EmailAddress: accountEmail,
		Provider:     accountProvider,
		SMTPHost:     accountSMTPHost,
		SMTPPort:     accountSMTPPort,
		Password:     password,
	}
	if req.DisplayName == "" {
		req.DisplayName = accountEmail
	}

	if err := e.client.AddAccount(cmd.Context(), req); err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Account %s added\n", accountEmail)
	return nil
}

func runAccountsDelete(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid account id %q", args[0])
	}

	if err := e.client.DeleteAccount(cmd.Context(), id); err != nil {
		return e.authErr(err)
	}

	fmt.Printf("Account %d deleted\n", id)
	return nil
}

func runAccountsTest(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid account id %q", args[0])
	}

	accounts, err := e.client.ListAccounts(cmd.Context())
	if err != nil {
		return e.authErr(err)
	}

	var account *api.SendingAccount
	for i := range accounts {
		if accounts[i].ID == id {
			account = &accounts[i]
			break
		}
	}
	if account == nil {
		return fmt.Errorf("account %d not found", id)
	}
	if account.SMTPHost == "" {
		return fmt.Errorf("account %d has no SMTP server on record", id)
	}

	port := account.SMTPPort
	if port == 0 {
		port = 587
	}

	password, err := promptPassword(fmt.Sprintf("SMTP password for %s: ", account.EmailAddress))
	if err != nil {
		return err
	}

	checker := smtpcheck.New(e.cfg.API.Timeout, e.logger)
	if err := checker.Verify(cmd.Context(), account.SMTPHost, port, account.EmailAddress, password); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Printf("Credentials for %s verified against %s:%d\n", account.EmailAddress, account.SMTPHost, port)
	return nil
}
