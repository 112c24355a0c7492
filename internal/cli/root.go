// Package cli implements the chatsync command line interface.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pandoo/chatsync/internal/backend"
	"github.com/pandoo/chatsync/internal/config"
	"github.com/pandoo/chatsync/internal/logging"
	"github.com/pandoo/chatsync/internal/poll"
	"github.com/pandoo/chatsync/internal/session"
	"github.com/pandoo/chatsync/internal/storage"
)

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "chatsync",
		Short:         "Keep a chat conversation in sync from the terminal",
		Long:          "chatsync mirrors a conversation timeline into the terminal,\ncombining history, push events, and a polling fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd, configFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path")
	cmd.PersistentFlags().String("endpoint", "", "GraphQL endpoint (overrides config)")
	cmd.PersistentFlags().String("token", "", "Auth token (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "Log level (overrides config)")

	cmd.AddCommand(
		newWatchCmd(),
		newSendCmd(),
		newDownloadCmd(),
		newConversationsCmd(),
		newUseCmd(),
		newProfileCmd(),
	)

	return cmd
}

// app holds the process-wide dependencies built in initApp.
type app struct {
	cfg     *config.Config
	client  *backend.Client
	context *config.ContextStore
}

var current *app

func initApp(cmd *cobra.Command, configFile string) error {
	loader := config.NewLoader()
	if configFile != "" {
		loader.SetConfigFile(configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.Backend.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Backend.Token = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logCfg.Output = f
		logCfg.Format = "json"
	}
	logging.Init(logCfg)
	if cfg.Backend.UserID != "" {
		logging.Logger = logging.WithUser(cfg.Backend.UserID)
	}

	client := backend.NewClient(cfg.Backend.Endpoint, cfg.Backend.Token,
		backend.WithTimeout(cfg.Backend.Timeout))

	current = &app{
		cfg:     cfg,
		client:  client,
		context: config.DefaultContextStore(),
	}
	return nil
}

// newSession wires a session from the loaded configuration. The S3
// uploader is built lazily and only when a bucket is configured.
func (a *app) newSession(ctx context.Context) (*session.Session, error) {
	var uploader storage.Uploader
	if a.cfg.Storage.Bucket != "" {
		up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          a.cfg.Storage.Bucket,
			Region:          a.cfg.Storage.Region,
			AccessKeyID:     a.cfg.Storage.AccessKeyID,
			SecretAccessKey: a.cfg.Storage.SecretAccessKey,
			PresignExpiry:   a.cfg.Storage.PresignExpiry,
			HTTPClient:      http.DefaultClient,
		})
		if err != nil {
			return nil, fmt.Errorf("init media storage: %w", err)
		}
		uploader = up
	}

	return session.New(session.Config{
		Backend:   a.client,
		LiveURL:   a.cfg.Backend.LiveEndpoint,
		Token:     a.cfg.Backend.Token,
		UserID:    a.cfg.Backend.UserID,
		Uploader:  uploader,
		PageLimit: a.cfg.Sync.PageLimit,
		Poll: poll.Config{
			Interval:  a.cfg.Sync.PollInterval,
			PageLimit: a.cfg.Sync.PageLimit,
		},
		ReconnectBaseDelay:   a.cfg.Sync.ReconnectBaseDelay,
		ReconnectMaxDelay:    a.cfg.Sync.ReconnectMaxDelay,
		ReconnectMaxAttempts: a.cfg.Sync.ReconnectMaxAttempts,
	}), nil
}

// resolveConversation picks the conversation to operate on: explicit
// argument, then persisted context, then empty (caller decides whether
// to auto-select).
func (a *app) resolveConversation(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	cliCtx, err := a.context.Load()
	if err != nil {
		return "", err
	}
	return cliCtx.ConversationID, nil
}
