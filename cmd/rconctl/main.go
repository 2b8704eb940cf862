package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/rconctl/internal/logging"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logging.ConfigureRuntime()

	rootCmd := &cobra.Command{
		Use:   "rconctl",
		Short: "Remote console client for game servers",
		Long: `rconctl speaks the RCON protocol to a running game server.

Commands can be run one at a time, from an interactive shell, or
relayed over HTTP by the bridge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		execCmd(),
		shellCmd(),
		serveCmd(),
		configCmd(),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rconctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
