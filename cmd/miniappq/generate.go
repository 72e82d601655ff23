package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/miniappq/internal/adapter/driving/http"
	"github.com/ericfisherdev/miniappq/internal/config"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

func newGenerateCmd() *cobra.Command {
	var bots []string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation pass and print the queries as JSON",
		Long: `generate runs the batch driver once for the given bots (all configured
bots by default) and prints the resulting queries in the same envelope the
HTTP API uses. No server is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			targets, err := selectBots(cfg, bots)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, bot := range targets {
				summary, err := a.batch.RunForBot(ctx, bot)
				if err != nil {
					return fmt.Errorf("generate for %s: %w", bot, err)
				}
				slog.Info("bot done", "bot", bot, "succeeded", summary.Succeeded, "failed", summary.Failed)
			}

			records, err := a.queries.List(ctx, model.QueryFilter{})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(httphandler.NewQueriesResponse(records))
		},
	}

	cmd.Flags().StringSliceVar(&bots, "bot", nil, "bot username to generate for (repeatable; default all configured bots)")

	return cmd
}

// selectBots returns the requested bots, or every configured bot when none
// were requested. Requested bots must be configured.
func selectBots(cfg *config.Config, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return cfg.Bots, nil
	}

	for _, bot := range requested {
		if !cfg.HasBot(bot) {
			return nil, fmt.Errorf("bot %q is not listed in MINIAPPQ_BOTS", bot)
		}
	}
	return requested, nil
}
