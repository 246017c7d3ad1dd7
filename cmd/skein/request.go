package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/skein/internal/builder"
	"github.com/fentz26/skein/internal/gitremote"
	"github.com/fentz26/skein/internal/models"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request NAME",
	Short: "Request a new package repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequest,
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List repository requests",
	Args:  cobra.NoArgs,
	RunE:  runRequests,
}

var showRequestCmd = &cobra.Command{
	Use:   "show-request REQUEST-ID",
	Short: "Show a repository request",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRequest,
}

var grantCmd = &cobra.Command{
	Use:   "grant REQUEST-ID",
	Short: "Grant a repository request",
	Long:  `Create the requested repository and its team, add the package to a tag and close the request.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGrant,
}

var (
	requestReason  string
	requestSummary string
	requestURL     string
	requestOwner   string
	closedRequests bool
	grantTag       string
	grantOwner     string
	assumeYes      bool
)

func init() {
	requestCmd.Flags().StringVar(&requestReason, "reason", "", "why the repository is needed (required)")
	requestCmd.MarkFlagRequired("reason")
	requestCmd.Flags().StringVar(&requestSummary, "summary", "", "package summary")
	requestCmd.Flags().StringVar(&requestURL, "url", "", "upstream url")
	requestCmd.Flags().StringVar(&requestOwner, "owner", os.Getenv("USER"), "package owner")

	requestsCmd.Flags().BoolVar(&closedRequests, "closed", false, "list closed requests instead of open ones")

	grantCmd.Flags().StringVar(&grantTag, "tag", "", "tag to add the package to (default koji.latest_tag)")
	grantCmd.Flags().StringVar(&grantOwner, "owner", "", "package owner (default the requester)")
	grantCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func runRequest(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	spec := gitremote.RepoSpec{Name: args[0], Summary: requestSummary, URL: requestURL, Owner: requestOwner}
	req, err := e.backend.RequestRemoteRepo(cmd.Context(), spec, requestReason)
	if err != nil {
		return err
	}
	fmt.Printf("Created request %s for %s\n", req.ID, req.Name)
	return nil
}

func runRequests(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	state := models.RequestStateOpen
	if closedRequests {
		state = models.RequestStateClosed
	}
	reqs, err := e.backend.SearchRepoRequests(cmd.Context(), state)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Println("No requests found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tSUMMARY")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Owner, truncate(r.Summary, 50))
	}
	return w.Flush()
}

func runShowRequest(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := e.backend.ShowRequest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printRequest(os.Stdout, req)
	return nil
}

func runGrant(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.builder()
	if err != nil {
		return err
	}
	opts := builder.GrantOptions{Tag: grantTag, Owner: grantOwner}
	if !assumeYes {
		opts.Confirm = func(req *models.RepoRequest) bool {
			printRequest(os.Stdout, req)
			return confirm(os.Stdin, os.Stdout, "Grant this request?")
		}
	}
	return b.Grant(cmd.Context(), args[0], opts)
}

func printRequest(w io.Writer, req *models.RepoRequest) {
	fmt.Fprintf(w, "ID:      %s\n", req.ID)
	fmt.Fprintf(w, "Name:    %s\n", req.Name)
	fmt.Fprintf(w, "Summary: %s\n", req.Summary)
	fmt.Fprintf(w, "URL:     %s\n", req.URL)
	fmt.Fprintf(w, "Owner:   %s\n", req.Owner)
	fmt.Fprintf(w, "State:   %s\n", req.State)
	if req.Reason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", req.Reason)
	}
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
