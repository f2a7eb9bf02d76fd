package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the sending backend",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	RunE:  runLogout,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the authenticated user's profile",
	RunE:  runProfile,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	RunE:  runProfileUpdate,
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the account password",
	RunE:  runChangePassword,
}

var (
	loginEmail  string
	profileName string
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (will prompt if not provided)")

	profileUpdateCmd.Flags().StringVar(&profileName, "name", "", "New display name")
	profileUpdateCmd.MarkFlagRequired("name")

	profileCmd.AddCommand(profileUpdateCmd, changePasswordCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, profileCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	email := loginEmail
	if email == "" {
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	result, err := e.client.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := e.sess.SaveCredentials(session.Credentials{
		Token:        result.Token,
		SessionToken: result.SessionToken,
	}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	if err := e.sess.SaveUser(&result.User); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	fmt.Printf("Logged in as %s <%s>\n", result.User.Name, result.User.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if e.sess.LoggedIn() {
		// Best effort: the local session is cleared even when the
		// remote delete fails.
		if err := e.client.Logout(cmd.Context()); err != nil {
			e.logger.Warn("remote logout failed", "error", err)
		}
	}

	if err := e.sess.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Println("Logged out")
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	user, err := e.client.GetProfile(cmd.Context())
	if err != nil {
		return e.authErr(err)
	}
	// Keep the cached copy fresh for offline display elsewhere.
	if err := e.sess.SaveUser(user); err != nil {
		e.logger.Warn("failed to cache profile", "error", err)
	}

	fmt.Printf("Name:  %s\n", user.Name)
	fmt.Printf("Email: %s\n", user.Email)
	if user.Plan != "" {
		fmt.Printf("Plan:  %s\n", user.Plan)
	}
	return nil
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	req := api.UpdateProfileRequest{Name: profileName}
	if err := e.client.UpdateProfile(cmd.Context(), req); err != nil {
		return e.authErr(err)
	}

	fmt.Println("Profile updated")
	return nil
}

func runChangePassword(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}

	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	updated, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if updated != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := e.client.ChangePassword(cmd.Context(), current, updated); err != nil {
		return e.authErr(err)
	}

	fmt.Println("Password changed")
	return nil
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	pwBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pwBytes), nil
}
