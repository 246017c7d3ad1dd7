// Package builder submits package builds to the hub, supervises them, and
// enables granted packages for building.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fentz26/skein/internal/audit"
	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/gitremote"
	"github.com/fentz26/skein/internal/koji"
	"github.com/fentz26/skein/internal/models"
	"github.com/fentz26/skein/internal/watch"
	"github.com/sirupsen/logrus"
)

// Builder drives the hub on behalf of the CLI.
type Builder struct {
	Config   *config.Config
	Session  koji.Session
	Backend  gitremote.Backend
	Observer watch.Observer
	PDR      *audit.PDRWriter
	Out      io.Writer
	Log      logrus.FieldLogger
}

// Build submits name against target and supervises the resulting tasks.
// The session is logged out however the build ends.
func (b *Builder) Build(ctx context.Context, name, target string) (*watch.Result, error) {
	if err := b.Session.Login(); err != nil {
		return nil, err
	}
	defer b.logout()

	bt, err := b.Session.GetBuildTarget(target)
	if err != nil {
		return nil, err
	}
	if bt == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	tag, err := b.Session.GetTag(bt.DestTagName)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, bt.DestTagName)
	}
	if tag.Locked {
		return nil, fmt.Errorf("%w: %s", ErrTagLocked, tag.Name)
	}

	source := b.Config.BuildSource(name)
	taskID, err := b.Session.SubmitBuild(source, target, nil, b.Config.Koji.Priority)
	if err != nil {
		return nil, err
	}
	b.Log.WithFields(logrus.Fields{"task_id": taskID, "source": source, "target": target}).Info("build submitted")
	b.printf("Task URL: %s\n", b.Config.TaskURL(taskID))
	if _, err := b.PDR.Record("build.submit", map[string]interface{}{
		"source":   source,
		"target":   target,
		"priority": b.Config.Koji.Priority,
	}, "success", name, fmt.Sprintf("task %d", taskID)); err != nil {
		b.Log.WithError(err).Warn("failed to write audit record")
	}

	return b.supervise(ctx, []int{taskID})
}

// Watch supervises tasks that are already running.
func (b *Builder) Watch(ctx context.Context, ids []int) (*watch.Result, error) {
	return b.supervise(ctx, ids)
}

func (b *Builder) supervise(ctx context.Context, ids []int) (*watch.Result, error) {
	sup := watch.New(b.Session, b.Observer, b.Config.Koji.PollInterval, b.Log)
	return sup.Supervise(ctx, ids)
}

// GrantOptions adjusts a grant.
type GrantOptions struct {
	// Tag defaults to koji.latest_tag.
	Tag string
	// Owner overrides the requester as package owner.
	Owner string
	// Confirm is asked before anything is changed. Nil confirms.
	Confirm func(req *models.RepoRequest) bool
}

// Grant fulfils a repository request: it creates the repository and its
// admin team, adds the package to the tag and closes the request.
func (b *Builder) Grant(ctx context.Context, requestID string, opts GrantOptions) error {
	req, err := b.Backend.ShowRequest(ctx, requestID)
	if err != nil {
		return err
	}
	owner := req.Owner
	if opts.Owner != "" {
		owner = opts.Owner
	}
	tag := opts.Tag
	if tag == "" {
		tag = b.Config.Koji.LatestTag
	}
	if opts.Confirm != nil && !opts.Confirm(req) {
		return ErrNotConfirmed
	}

	if err := b.Session.Login(); err != nil {
		return err
	}
	defer b.logout()

	spec := gitremote.RepoSpec{Name: req.Name, Summary: req.Summary, URL: req.URL, Owner: owner}
	if err := b.Backend.CreateRemoteRepo(ctx, spec); err != nil && !errors.Is(err, gitremote.ErrRepoExists) {
		return err
	}
	team := fmt.Sprintf("%s_%s", b.Config.Skein.TeamPrefix, req.Name)
	if err := b.Backend.CreateTeam(ctx, team, req.Name); err != nil {
		return err
	}

	if err := b.tagPackage(tag, req.Name, owner); err != nil {
		return err
	}
	if err := b.Backend.CloseRequest(ctx, requestID); err != nil {
		return err
	}
	_, err = b.PDR.Record("request.grant", map[string]interface{}{
		"request": requestID,
		"tag":     tag,
		"owner":   owner,
	}, "success", req.Name, team)
	return err
}

func (b *Builder) tagPackage(tag, name, owner string) error {
	listed, err := b.Session.CheckTagPackage(tag, name)
	if err != nil {
		return fmt.Errorf("unable to tag package %s: %w", name, err)
	}
	log := b.Log.WithFields(logrus.Fields{"package": name, "tag": tag})
	if listed {
		log.Info("package already added to tag")
		b.printf("Package '%s' already added to tag '%s', skipping\n", name, tag)
		return nil
	}
	if err := b.Session.PackageListAdd(tag, name, owner); err != nil {
		return fmt.Errorf("unable to tag package %s: %w", name, err)
	}
	log.Info("added package to tag")
	b.printf("Added package '%s' to the tag '%s'\n", name, tag)
	return nil
}

func (b *Builder) logout() {
	if err := b.Session.Logout(); err != nil {
		b.Log.WithError(err).Warn("logout failed")
	}
}

func (b *Builder) printf(format string, args ...interface{}) {
	if b.Out != nil {
		fmt.Fprintf(b.Out, format, args...)
	}
}
