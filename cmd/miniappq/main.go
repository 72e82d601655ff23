package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the binary without a subcommand
// is the same as "serve".
func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "miniappq",
		Short: "Generate and serve Telegram mini app launch queries",
		Long: `miniappq logs in with every Telethon string session in the sessions
directory, opens each configured bot's mini app and stores the launch query
(tgWebAppData). The queries are served over a small JSON API and can be
refreshed on demand.

Configuration comes from MINIAPPQ_* environment variables or a .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newProxiesCmd())

	return root
}
