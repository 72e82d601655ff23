package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/miniappq/internal/adapter/driven/filesystem"
	"github.com/ericfisherdev/miniappq/internal/adapter/driven/proxycheck"
	"github.com/ericfisherdev/miniappq/internal/config"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

func newProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Inspect the proxy list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Probe every proxy in the proxy file once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			proxies, err := filesystem.NewProxyFile(cfg.ProxyFile).LoadProxies(cmd.Context())
			if err != nil {
				return err
			}

			checker := proxycheck.NewChecker(cfg.ProbeURL, cfg.ProbeTimeout, slog.Default())
			return checkProxies(cmd.Context(), cmd.OutOrStdout(), checker, proxies)
		},
	})

	return cmd
}

// checkProxies prints one row per proxy and fails when any is unreachable.
// Credentials are never printed.
func checkProxies(ctx context.Context, out io.Writer, validator driven.ProxyValidator, proxies []model.Proxy) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPROXY\tSTATUS")

	failed := 0
	for i, p := range proxies {
		status := "ok"
		if !validator.Validate(ctx, p) {
			status = "unreachable"
			failed++
		}
		fmt.Fprintf(w, "%d\t%s://%s\t%s\n", i+1, p.Protocol, p.Addr(), status)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d proxies unreachable", failed, len(proxies))
	}
	return nil
}
