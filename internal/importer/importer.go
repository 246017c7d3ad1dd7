// Package importer turns source packages into package repositories and
// lookaside entries.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fentz26/skein/internal/audit"
	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/gitremote"
	"github.com/fentz26/skein/internal/gitrepo"
	"github.com/fentz26/skein/internal/lookaside"
	"github.com/fentz26/skein/internal/models"
	"github.com/fentz26/skein/internal/pkgfiles"
	"github.com/fentz26/skein/internal/srpm"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// PackageTool reads and unpacks source packages.
type PackageTool interface {
	Query(ctx context.Context, path string) (*models.Package, error)
	Install(ctx context.Context, path, root string) error
}

// History records import attempts.
type History interface {
	StartImport(path string) (*models.ImportRecord, error)
	FinishImport(id, pkg, nvr string, status models.ImportStatus, errMsg string) error
}

// Options adjusts an import run.
type Options struct {
	NoUpload bool
	NoPush   bool
}

// Importer coordinates the per-package import steps.
type Importer struct {
	Config     *config.Config
	RPM        PackageTool
	Cache      *lookaside.Cache
	Files      *pkgfiles.Writer
	Backend    gitremote.Backend
	Reconciler *gitrepo.Reconciler
	Committer  *gitrepo.Committer
	History    History
	PDR        *audit.PDRWriter
	Out        io.Writer
	Log        logrus.FieldLogger
}

// Import imports every source package named by paths. A path may be a
// package file or a directory of them. A failing package does not stop the
// others; all failures are returned together.
func (im *Importer) Import(ctx context.Context, paths []string, opts Options) error {
	var errs error
	for _, path := range paths {
		srpms, err := srpm.List(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, p := range srpms {
			if err := ctx.Err(); err != nil {
				return multierr.Append(errs, err)
			}
			if err := im.importOne(ctx, p, opts); err != nil {
				im.Log.WithError(err).WithField("srpm", p).Error("import failed")
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", p, err))
			}
		}
	}
	return errs
}

func (im *Importer) importOne(ctx context.Context, path string, opts Options) (err error) {
	rec, err := im.History.StartImport(path)
	if err != nil {
		return err
	}
	var pkg *models.Package
	defer func() {
		im.finish(rec, path, pkg, opts, err)
	}()

	im.printf("Importing %s\n", path)
	im.Log.WithField("srpm", path).Info("importing")

	pkg, err = im.RPM.Query(ctx, path)
	if err != nil {
		return err
	}
	layout := srpm.NewLayout(im.Config.Skein.InstallRoot, im.Config.Skein.RPMBuildHome, pkg.Name)
	if err = im.RPM.Install(ctx, path, layout.Root); err != nil {
		return err
	}

	if err = im.ensureRemote(ctx, pkg); err != nil {
		return err
	}
	repoDir := filepath.Join(im.Config.Skein.BaseDir, pkg.Name)
	binding, err := im.Reconciler.Reconcile(ctx, repoDir, im.Config.OriginURL(pkg.Name))
	if err != nil {
		return err
	}
	im.Log.WithFields(logrus.Fields{"repo": repoDir, "outcome": binding.Outcome.String()}).Info("repository reconciled")

	steps := []func() error{
		func() error { return im.Files.CopySpec(layout.SpecFile(pkg.Name), repoDir) },
		func() error { return im.Files.CopyPatches(pkg, layout.SourcesDir(), repoDir) },
		func() error { return im.Cache.Stage(pkg, layout.SourcesDir()) },
		func() error { return im.Cache.WriteManifest(pkg, repoDir) },
		func() error { return im.Files.WriteGitignore(pkg, repoDir) },
		func() error { return im.Files.WriteMakefile(pkg, repoDir) },
	}
	for _, step := range steps {
		if err = step(); err != nil {
			return err
		}
	}

	if !opts.NoUpload {
		if err = im.Cache.Upload(ctx, pkg); err != nil {
			return err
		}
	}
	if !opts.NoPush {
		msg, err := pkgfiles.CommitMessage(im.Config.Skein.CommitMessage, pkg)
		if err != nil {
			return err
		}
		if _, err := im.Committer.Publish(ctx, binding.Repo, msg); err != nil {
			return err
		}
	}

	im.printf("Import %s complete\n\n", pkg.Name)
	return nil
}

// ensureRemote makes sure the hosting service has a repository for pkg.
func (im *Importer) ensureRemote(ctx context.Context, pkg *models.Package) error {
	err := im.Backend.CreateRemoteRepo(ctx, gitremote.RepoSpec{
		Name:    pkg.Name,
		Summary: pkg.Summary,
		URL:     pkg.URL,
		Owner:   im.Config.Koji.Username,
	})
	if errors.Is(err, gitremote.ErrRepoExists) {
		im.Log.WithField("repo", pkg.Name).Debug("remote repository already exists")
		return nil
	}
	return err
}

func (im *Importer) finish(rec *models.ImportRecord, path string, pkg *models.Package, opts Options, err error) {
	status, outcome, msg := models.ImportStatusCompleted, "success", ""
	if err != nil {
		status, outcome, msg = models.ImportStatusFailed, "failure", err.Error()
	}
	name, nvr, subject := "", "", path
	if pkg != nil {
		name, nvr, subject = pkg.Name, pkg.NVR(), pkg.Name
	}
	log := im.Log.WithField("srpm", path)
	if ferr := im.History.FinishImport(rec.ID, name, nvr, status, msg); ferr != nil {
		log.WithError(ferr).Warn("failed to record import")
	}
	if _, perr := im.PDR.Record("package.import", map[string]interface{}{
		"srpm":      path,
		"no_upload": opts.NoUpload,
		"no_push":   opts.NoPush,
	}, outcome, subject, msg); perr != nil {
		log.WithError(perr).Warn("failed to write audit record")
	}
}

// Sources refreshes only the lookaside side of a package: the cached
// sources, the manifest in its repository and the upload. With replace the
// manifest is rewritten; otherwise new sources are appended to it.
func (im *Importer) Sources(ctx context.Context, path string, replace bool) error {
	pkg, err := im.RPM.Query(ctx, path)
	if err != nil {
		return err
	}
	layout := srpm.NewLayout(im.Config.Skein.InstallRoot, im.Config.Skein.RPMBuildHome, pkg.Name)
	if err := im.RPM.Install(ctx, path, layout.Root); err != nil {
		return err
	}
	if err := im.Cache.Stage(pkg, layout.SourcesDir()); err != nil {
		return err
	}
	repoDir := filepath.Join(im.Config.Skein.BaseDir, pkg.Name)
	if replace {
		err = im.Cache.WriteManifest(pkg, repoDir)
	} else {
		err = im.Cache.AppendManifest(pkg, repoDir)
	}
	if err != nil {
		return err
	}
	if err := im.Cache.Upload(ctx, pkg); err != nil {
		return err
	}
	_, err = im.PDR.Record("package.sources", map[string]interface{}{"srpm": path, "replace": replace}, "success", pkg.Name, "")
	return err
}

// Deps prints the build requirements of every source package under path.
func (im *Importer) Deps(ctx context.Context, path string) error {
	srpms, err := srpm.List(path)
	if err != nil {
		return err
	}
	var errs error
	for _, p := range srpms {
		pkg, err := im.RPM.Query(ctx, p)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		im.printf("== Deps for %s ==\n", p)
		for _, br := range pkg.BuildRequires {
			im.Log.WithField("srpm", p).Info(br)
			im.printf("  %s\n", br)
		}
		im.printf("\n")
	}
	return errs
}

func (im *Importer) printf(format string, args ...interface{}) {
	if im.Out != nil {
		fmt.Fprintf(im.Out, format, args...)
	}
}
