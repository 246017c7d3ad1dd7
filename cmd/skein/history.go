package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past imports",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyStatus string

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (running, completed, failed)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	imports, err := e.store.ListImports(historyStatus)
	if err != nil {
		return err
	}
	if len(imports) == 0 {
		fmt.Println("No imports found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tNVR\tSTATUS\tERROR")
	for _, rec := range imports {
		nvr := rec.NVR
		if nvr == "" {
			nvr = rec.Path
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.StartedAt.Format("2006-01-02 15:04:05"), nvr, rec.Status, truncate(rec.Error, 60))
	}
	return w.Flush()
}
