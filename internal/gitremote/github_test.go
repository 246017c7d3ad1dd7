package gitremote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/logging"
	"github.com/fentz26/skein/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGitHub struct {
	repos  map[string]bool
	issues map[int]map[string]interface{}
	teams  []map[string]interface{}
	auth   []string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		var body struct{ Name string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if f.repos[body.Name] {
			reply(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"message": "Repository creation failed.",
				"errors":  []map[string]string{{"resource": "Repository", "field": "name", "message": "name already exists on this account"}},
			})
			return
		}
		f.repos[body.Name] = true
		reply(w, http.StatusCreated, map[string]interface{}{"name": body.Name})
	})
	mux.HandleFunc("/orgs/acme/teams", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.teams = append(f.teams, body)
		reply(w, http.StatusCreated, map[string]interface{}{"id": 1, "name": body["name"]})
	})
	mux.HandleFunc("/repos/acme/requests/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			var list []map[string]interface{}
			for _, issue := range f.issues {
				if issue["state"] == r.URL.Query().Get("state") {
					list = append(list, issue)
				}
			}
			reply(w, http.StatusOK, list)
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		n := len(f.issues) + 1
		issue := map[string]interface{}{"number": n, "state": "open", "body": body["body"], "title": body["title"]}
		f.issues[n] = issue
		reply(w, http.StatusCreated, issue)
	})
	mux.HandleFunc("/repos/acme/requests/issues/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/repos/acme/requests/issues/%d", &n)
		issue, ok := f.issues[n]
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		if r.Method == http.MethodPatch {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			issue["state"] = body["state"]
		}
		reply(w, http.StatusOK, issue)
	})
	return mux
}

func newGitHub(t *testing.T) (*GitHub, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{repos: map[string]bool{}, issues: map[int]map[string]interface{}{}}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	t.Setenv("SKEIN_TEST_TOKEN", "s3cret")

	b, err := DefaultRegistry().Open(context.Background(), "github", Deps{
		Config:     config.GitConfig{Org: "acme", RequestRepo: "requests", TokenEnv: "SKEIN_TEST_TOKEN"},
		Log:        logging.Discard(),
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	return b.(*GitHub), fake
}

func TestGitHubCreateRemoteRepo(t *testing.T) {
	g, fake := newGitHub(t)
	ctx := context.Background()

	require.NoError(t, g.CreateRemoteRepo(ctx, RepoSpec{Name: "bash", Summary: "shell"}))
	assert.ErrorIs(t, g.CreateRemoteRepo(ctx, RepoSpec{Name: "bash"}), ErrRepoExists)
	assert.Equal(t, "Bearer s3cret", fake.auth[0])

	require.NoError(t, g.CreateTeam(ctx, "pkg_bash", "bash"))
	require.Len(t, fake.teams, 1)
	assert.Equal(t, "admin", fake.teams[0]["permission"])
	assert.Equal(t, []interface{}{"acme/bash"}, fake.teams[0]["repo_names"])
}

func TestGitHubRequests(t *testing.T) {
	g, _ := newGitHub(t)
	ctx := context.Background()

	req, err := g.RequestRemoteRepo(ctx, RepoSpec{Name: "bash", Summary: "The GNU Bourne Again shell", Owner: "builder"}, "base set")
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "bash", req.Name)
	assert.Equal(t, "base set", req.Reason)

	open, err := g.SearchRepoRequests(ctx, models.RequestStateOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "builder", open[0].Owner)

	require.NoError(t, g.CloseRequest(ctx, "1"))
	shown, err := g.ShowRequest(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStateClosed, shown.State)

	_, err = g.ShowRequest(ctx, "99")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	_, err = g.ShowRequest(ctx, "abc")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestGitHubRequiresToken(t *testing.T) {
	t.Setenv("SKEIN_TEST_TOKEN", "")
	_, err := NewGitHub(context.Background(), Deps{
		Config: config.GitConfig{Org: "acme", RequestRepo: "requests", TokenEnv: "SKEIN_TEST_TOKEN"},
		Log:    logging.Discard(),
	})
	assert.Error(t, err)
}
