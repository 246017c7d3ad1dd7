package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fentz26/skein/internal/audit"
	"github.com/fentz26/skein/internal/builder"
	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/connectors/localexec"
	"github.com/fentz26/skein/internal/gitremote"
	"github.com/fentz26/skein/internal/gitrepo"
	"github.com/fentz26/skein/internal/importer"
	"github.com/fentz26/skein/internal/koji"
	"github.com/fentz26/skein/internal/logging"
	"github.com/fentz26/skein/internal/lookaside"
	"github.com/fentz26/skein/internal/pkgfiles"
	"github.com/fentz26/skein/internal/srpm"
	"github.com/fentz26/skein/internal/store"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// errTasksFailed is returned when supervision ends in FAILURE. The tasks
// have already been reported.
var errTasksFailed = errors.New("tasks failed")

// env holds what every command needs: config, logger, store and backend.
type env struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *store.Store
	pdr     *audit.PDRWriter
	backend gitremote.Backend
	closers []io.Closer
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logging.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	s, err := store.New(cfg.Skein.DBPath)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = s
	e.closers = append(e.closers, s)
	e.pdr = audit.NewPDRWriter(s)

	e.backend, err = gitremote.DefaultRegistry().Open(ctx, cfg.Git.Backend, gitremote.Deps{
		Config: cfg.Git,
		Store:  s,
		Log:    log.WithField("backend", cfg.Git.Backend),
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) Close() error {
	var errs error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, e.closers[i].Close())
	}
	return errs
}

func (e *env) importer() *importer.Importer {
	exec := localexec.New("", e.log)
	author := gitrepo.Author{Name: e.cfg.Skein.AuthorName, Email: e.cfg.Skein.AuthorEmail}
	return &importer.Importer{
		Config:     e.cfg,
		RPM:        srpm.New(exec, e.log),
		Cache:      lookaside.New(e.cfg.Skein.LookasideDir, e.cfg.Lookaside, exec.In(e.cfg.Skein.LookasideDir), e.log),
		Files:      pkgfiles.New(e.cfg.Skein.MakefilePath, e.cfg.Skein.MakefileName, e.log),
		Backend:    e.backend,
		Reconciler: gitrepo.NewReconciler(gitrepo.NewOpener(author), e.log),
		Committer:  gitrepo.NewCommitter(e.log),
		History:    e.store,
		PDR:        e.pdr,
		Out:        os.Stdout,
		Log:        e.log,
	}
}

func (e *env) builder() (*builder.Builder, error) {
	session, err := koji.NewClient(e.cfg.Koji, e.log.WithField("component", "koji"))
	if err != nil {
		return nil, err
	}
	return &builder.Builder{
		Config:  e.cfg,
		Session: session,
		Backend: e.backend,
		PDR:     e.pdr,
		Out:     os.Stdout,
		Log:     e.log,
	}, nil
}
