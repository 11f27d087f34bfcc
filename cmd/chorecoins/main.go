// Package main implements the chorecoins CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fennwick/chorecoins/internal/backend"
	"github.com/fennwick/chorecoins/internal/backend/local"
	"github.com/fennwick/chorecoins/internal/backend/remote"
	"github.com/fennwick/chorecoins/internal/config"
	"github.com/fennwick/chorecoins/internal/metrics"
	"github.com/fennwick/chorecoins/internal/session"
	"github.com/fennwick/chorecoins/pkg/logging"
)

var configPath string

func main() {
	metrics.Register()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "chorecoins",
	Short:         "Chorecoins - family chore tracking",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(childrenCmd, choresCmd, redeemCmd, profileCmd)
}

// app bundles the configured backend and reconciler for one CLI invocation.
type app struct {
	cfg     *config.Config
	rec     *session.Reconciler
	cleanup func()
}

// newApp loads config, builds the backend, restores the persisted session,
// and bootstraps the reconciler.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetupWithLevel(logging.Level(cfg.LogLevel))

	token, err := config.ReadToken()
	if err != nil {
		return nil, err
	}

	var be backend.Backend
	cleanup := func() {}
	if cfg.Backend.Local {
		store, err := local.New(cfg.Backend.DBPath, cfg.Backend.TokenSecret)
		if err != nil {
			return nil, err
		}
		if token != "" {
			// An expired or invalid token just means starting anonymous.
			_ = store.Restore(token)
		}
		be = store
		cleanup = func() { store.Close() }
	} else {
		opts := []remote.Option{}
		if token != "" {
			opts = append(opts, remote.WithToken(token))
		}
		be = remote.New(cfg.Backend.URL, opts...)
	}

	var recOpts []session.Option
	if cfg.Timeout() > 0 {
		recOpts = append(recOpts, session.WithTimeout(cfg.Timeout()))
	}
	rec := session.New(be, recOpts...)
	if err := rec.Bootstrap(ctx); err != nil {
		cleanup()
		return nil, err
	}

	// Restore the child selection from the previous run. A selection that no
	// longer exists (or no session) just leaves the default first child.
	if selected, err := config.ReadSelectedChild(); err == nil && selected != "" {
		_ = rec.SelectChild(ctx, selected)
	}

	return &app{cfg: cfg, rec: rec, cleanup: cleanup}, nil
}

func (a *app) close() {
	a.rec.Close()
	a.cleanup()
}

// saveSession persists the current session token for the next invocation.
// Signing out also discards the persisted child selection.
func (a *app) saveSession() error {
	sess := a.rec.Session()
	if sess == nil {
		if err := config.RemoveSelectedChild(); err != nil {
			return err
		}
		return config.RemoveToken()
	}
	return config.WriteToken(sess.AccessToken)
}

// formatAmount renders a balance or reward in pounds.
func formatAmount(amount float64) string {
	return fmt.Sprintf("£%.2f", amount)
}
