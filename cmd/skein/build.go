package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/skein/internal/builder"
	"github.com/fentz26/skein/internal/tui"
	"github.com/fentz26/skein/internal/watch"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build NAME",
	Short: "Build a package and watch its tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch TASK-ID...",
	Short: "Watch running tasks until they finish",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

var (
	buildTarget string
	useTUI      bool
)

func init() {
	buildCmd.Flags().StringVar(&buildTarget, "target", "", "build target (required)")
	buildCmd.MarkFlagRequired("target")
	buildCmd.Flags().BoolVar(&useTUI, "tui", false, "show tasks in an interactive view")

	watchCmd.Flags().BoolVar(&useTUI, "tui", false, "show tasks in an interactive view")
}

func runBuild(cmd *cobra.Command, args []string) error {
	name := args[0]
	return supervise(cmd.Context(), fmt.Sprintf("build %s on %s", name, buildTarget),
		func(ctx context.Context, b *builder.Builder) (*watch.Result, error) {
			return b.Build(ctx, name, buildTarget)
		})
}

func runWatch(cmd *cobra.Command, args []string) error {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid task id %q", arg)
		}
		ids = append(ids, id)
	}
	return supervise(cmd.Context(), "watch "+strings.Join(args, " "),
		func(ctx context.Context, b *builder.Builder) (*watch.Result, error) {
			return b.Watch(ctx, ids)
		})
}

// supervise runs fn with observers for the store, the log and either stdout
// or the interactive view, and turns a FAILURE verdict into errTasksFailed.
func supervise(ctx context.Context, title string, fn func(context.Context, *builder.Builder) (*watch.Result, error)) error {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.builder()
	if err != nil {
		return err
	}
	stored := watch.NewStoreObserver(e.store, e.pdr, e.log)

	var res *watch.Result
	if useTUI {
		// The view owns the terminal; keep the logger and the task URL off it.
		if e.cfg.Logger.File == "" {
			e.log.SetOutput(io.Discard)
		}
		b.Out = nil
		res, err = tui.Watch(ctx, title, func(ctx context.Context, obs watch.Observer) (*watch.Result, error) {
			b.Observer = watch.Multi(stored, watch.NewLogObserver(nil, e.log), obs)
			return fn(ctx, b)
		}, tea.WithAltScreen())
	} else {
		b.Observer = watch.Multi(stored, watch.NewLogObserver(os.Stdout, e.log))
		res, err = fn(ctx, b)
	}
	if err != nil {
		return err
	}
	if res.ExitCode() != 0 {
		return errTasksFailed
	}
	return nil
}
