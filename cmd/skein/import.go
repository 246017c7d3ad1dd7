package main

import (
	"github.com/fentz26/skein/internal/importer"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import PATH...",
	Short: "Import source packages into their repositories",
	Long:  `Import each source package, or every package in a directory, into its git repository and the lookaside cache.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources SRPM",
	Short: "Update a package's lookaside sources",
	Args:  cobra.ExactArgs(1),
	RunE:  runSources,
}

var depsCmd = &cobra.Command{
	Use:   "deps PATH",
	Short: "List the build requirements of source packages",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

var (
	noUpload   bool
	noPush     bool
	newSources bool
)

func init() {
	importCmd.Flags().BoolVar(&noUpload, "no-upload", false, "do not upload sources to the lookaside")
	importCmd.Flags().BoolVar(&noPush, "no-push", false, "do not commit and push the repository")

	sourcesCmd.Flags().BoolVar(&newSources, "new", false, "replace the sources file instead of appending to it")
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	return e.importer().Import(cmd.Context(), args, importer.Options{NoUpload: noUpload, NoPush: noPush})
}

func runSources(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	return e.importer().Sources(cmd.Context(), args[0], newSources)
}

func runDeps(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	return e.importer().Deps(cmd.Context(), args[0])
}
