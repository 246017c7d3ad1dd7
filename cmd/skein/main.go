package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/skein/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skein",
	Short: "skein - source package import and build tool",
	Long: `skein imports source packages into per-package git repositories and a
binary lookaside cache, submits builds to the build hub and watches them
until they finish.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "configuration file")

	rootCmd.AddCommand(importCmd, sourcesCmd, depsCmd)
	rootCmd.AddCommand(buildCmd, watchCmd)
	rootCmd.AddCommand(requestCmd, requestsCmd, showRequestCmd, grantCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errTasksFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
