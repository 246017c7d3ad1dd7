package gitremote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/fentz26/skein/internal/models"
	"github.com/google/go-github/v32/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

// requestLabel marks the issues that are repository requests.
const requestLabel = "repo-request"

// GitHub hosts repositories in an organization and tracks requests as
// issues in a request repository.
type GitHub struct {
	client      *github.Client
	org         string
	requestRepo string
	log         logrus.FieldLogger
}

// NewGitHub is the factory for the "github" backend. The API token is read
// from the environment variable named by git.token_env.
func NewGitHub(ctx context.Context, deps Deps) (Backend, error) {
	cfg := deps.Config
	if cfg.Org == "" || cfg.RequestRepo == "" {
		return nil, fmt.Errorf("github backend: git.org and git.request_repo are required")
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("github backend: $%s is not set", cfg.TokenEnv)
	}

	if deps.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, deps.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)
	if deps.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(deps.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github backend: %w", err)
		}
		client.BaseURL = base
	}
	return &GitHub{client: client, org: cfg.Org, requestRepo: cfg.RequestRepo, log: deps.Log}, nil
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) CreateRemoteRepo(ctx context.Context, spec RepoSpec) error {
	_, _, err := g.client.Repositories.Create(ctx, g.org, &github.Repository{
		Name:        github.String(spec.Name),
		Description: github.String(spec.Summary),
		Homepage:    github.String(spec.URL),
	})
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("%s: %w", spec.Name, ErrRepoExists)
	}
	if err != nil {
		return fmt.Errorf("create repository %s/%s: %w", g.org, spec.Name, err)
	}
	g.log.WithFields(logrus.Fields{"org": g.org, "repo": spec.Name}).Info("created remote repository")
	return nil
}

func (g *GitHub) CreateTeam(ctx context.Context, team, repo string) error {
	_, _, err := g.client.Teams.CreateTeam(ctx, g.org, github.NewTeam{
		Name:       team,
		RepoNames:  []string{g.org + "/" + repo},
		Permission: github.String("admin"),
	})
	if err != nil {
		return fmt.Errorf("create team %s: %w", team, err)
	}
	g.log.WithFields(logrus.Fields{"team": team, "repo": repo}).Info("granted team access")
	return nil
}

// requestBody is the YAML document stored in a request issue.
type requestBody struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
	URL     string `yaml:"url"`
	Owner   string `yaml:"owner"`
	Reason  string `yaml:"reason"`
}

func (g *GitHub) RequestRemoteRepo(ctx context.Context, spec RepoSpec, reason string) (*models.RepoRequest, error) {
	body, err := yaml.Marshal(requestBody{Name: spec.Name, Summary: spec.Summary, URL: spec.URL, Owner: spec.Owner, Reason: reason})
	if err != nil {
		return nil, err
	}
	issue, _, err := g.client.Issues.Create(ctx, g.org, g.requestRepo, &github.IssueRequest{
		Title:  github.String("Repository request: " + spec.Name),
		Body:   github.String(string(body)),
		Labels: &[]string{requestLabel},
	})
	if err != nil {
		return nil, fmt.Errorf("request repository %s: %w", spec.Name, err)
	}
	return issueRequest(issue)
}

func (g *GitHub) SearchRepoRequests(ctx context.Context, state models.RequestState) ([]models.RepoRequest, error) {
	opts := &github.IssueListByRepoOptions{
		State:       string(state),
		Labels:      []string{requestLabel},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []models.RepoRequest
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.org, g.requestRepo, opts)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		for _, issue := range issues {
			req, err := issueRequest(issue)
			if err != nil {
				g.log.WithError(err).WithField("issue", issue.GetNumber()).Warn("skipping malformed request")
				continue
			}
			out = append(out, *req)
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHub) ShowRequest(ctx context.Context, id string) (*models.RepoRequest, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	issue, resp, err := g.client.Issues.Get(ctx, g.org, g.requestRepo, n)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("show request %s: %w", id, err)
	}
	return issueRequest(issue)
}

func (g *GitHub) CloseRequest(ctx context.Context, id string) error {
	n, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	_, _, err = g.client.Issues.Edit(ctx, g.org, g.requestRepo, n, &github.IssueRequest{State: github.String("closed")})
	if err != nil {
		return fmt.Errorf("close request %s: %w", id, err)
	}
	return nil
}

func issueRequest(issue *github.Issue) (*models.RepoRequest, error) {
	var body requestBody
	if err := yaml.Unmarshal([]byte(issue.GetBody()), &body); err != nil {
		return nil, fmt.Errorf("issue %d: %w", issue.GetNumber(), err)
	}
	return &models.RepoRequest{
		ID:        strconv.Itoa(issue.GetNumber()),
		Name:      body.Name,
		Summary:   body.Summary,
		URL:       body.URL,
		Owner:     body.Owner,
		Reason:    body.Reason,
		State:     models.RequestState(issue.GetState()),
		CreatedAt: issue.GetCreatedAt(),
	}, nil
}

var _ Backend = (*GitHub)(nil)
