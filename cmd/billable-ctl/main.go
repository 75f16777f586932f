package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"billable/internal/cli"
	"billable/internal/config"
	"billable/internal/log"
)

var Version = "dev"

func main() {
	ctx, stop := cli.SignalContext(log.Discard())
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app opens the ledger for the subcommands that need it.
type app struct {
	verbose bool
	stderr  io.Writer
}

func (a *app) open(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := cli.LoadConfig((*config.Config).Validate)
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, Format: cfg.LogFormat, Component: log.ComponentCLI, Output: a.stderr})
	return cli.OpenRuntime(ctx, cfg, logger, nil)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}
	rootCmd := &cobra.Command{
		Use:   "billable-ctl",
		Short: "Inspect and maintain the billable ledger",
		Long: `billable-ctl inspects and maintains the billable ledger.

It reads the same environment (or .env) as the server: DATA_DIR,
CATALOG_BACKEND, PROPAGATION_MODE and MONTHLY_OVERFLOW matter here.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level to stderr")

	rootCmd.AddCommand(monthCmd(a))
	rootCmd.AddCommand(rateCmd(a))
	rootCmd.AddCommand(sweepCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(definitionsCmd(a))
	return rootCmd
}
