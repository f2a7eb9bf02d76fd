package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailcannon/mailcannon/internal/api"
	"github.com/mailcannon/mailcannon/internal/config"
	"github.com/mailcannon/mailcannon/internal/session"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailcannon",
	Short: "MailCannon - bulk email campaign client",
	Long:  `MailCannon drives bulk email campaigns through a remote sending backend: recipient import, campaign configuration and sequential dispatch.`,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration OK (api: %s, storage: %s)\n", cfg.API.BaseURL, cfg.Storage.Dir)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailcannon version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

// env bundles the pieces nearly every command needs: configuration, a
// logger, the local session store and the backend client.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	sess   *session.Store
	client *api.Client
}

func openEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	sess, err := session.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: setupLogger(cfg.Logging),
		sess:   sess,
		client: api.NewClient(cfg.API.BaseURL, sess, cfg.API.Timeout),
	}, nil
}

func (e *env) Close() {
	e.sess.Close()
}

// requireLogin fails fast for commands that need an authenticated session.
func (e *env) requireLogin() error {
	if !e.sess.LoggedIn() {
		return errors.New("not logged in (run 'mailcannon login')")
	}
	return nil
}

// authErr translates a backend rejection of our tokens into a local
// logout, mirroring how the original session handling cleared state.
func (e *env) authErr(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		if clearErr := e.sess.Clear(); clearErr != nil {
			e.logger.Warn("failed to clear session", "error", clearErr)
		}
		return errors.New("session expired, please run 'mailcannon login'")
	}
	return err
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
