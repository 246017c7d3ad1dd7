// Package pkgfiles writes the tracked files of a package repository: the
// spec, its patches, .gitignore and the Makefile.
package pkgfiles

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/lookaside"
	"github.com/fentz26/skein/internal/models"
	"github.com/google/renameio"
	"github.com/sirupsen/logrus"
)

// ErrTemplateNotFound is returned when no Makefile template is on the search path.
var ErrTemplateNotFound = errors.New("makefile template not found")

// Writer populates package repositories.
type Writer struct {
	searchPath   string
	templateName string
	log          logrus.FieldLogger
}

// New creates a Writer that looks for templateName along searchPath, a
// colon separated directory list.
func New(searchPath, templateName string, log logrus.FieldLogger) *Writer {
	return &Writer{searchPath: searchPath, templateName: templateName, log: log}
}

// CopySpec copies the spec file into repoDir.
func (w *Writer) CopySpec(specFile, repoDir string) error {
	w.log.WithFields(logrus.Fields{"spec": filepath.Base(specFile), "dest": repoDir}).Info("copying spec")
	return lookaside.CopyFile(specFile, filepath.Join(repoDir, filepath.Base(specFile)))
}

// CopyPatches copies every patch of pkg from srcDir into repoDir.
func (w *Writer) CopyPatches(pkg *models.Package, srcDir, repoDir string) error {
	for _, patch := range pkg.Patches {
		w.log.WithFields(logrus.Fields{"patch": patch, "dest": repoDir}).Info("copying patch")
		if err := lookaside.CopyFile(filepath.Join(srcDir, patch), filepath.Join(repoDir, patch)); err != nil {
			return err
		}
	}
	return nil
}

// WriteGitignore lists the package's sources in repoDir/.gitignore so the
// cached archives are never committed.
func (w *Writer) WriteGitignore(pkg *models.Package, repoDir string) error {
	var b strings.Builder
	for _, source := range pkg.Sources {
		b.WriteString(source)
		b.WriteByte('\n')
	}
	w.log.WithField("dest", repoDir).Info("updating .gitignore with sources")
	return renameio.WriteFile(filepath.Join(repoDir, ".gitignore"), []byte(b.String()), 0o644)
}

// FindTemplate returns the first template found along the search path.
func (w *Writer) FindTemplate() (string, error) {
	for _, dir := range filepath.SplitList(w.searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(config.ExpandHome(dir), w.templateName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	w.log.WithFields(logrus.Fields{"name": w.templateName, "path": w.searchPath}).Error("makefile template not found")
	return "", fmt.Errorf("%w: %q in %q", ErrTemplateNotFound, w.templateName, w.searchPath)
}

// WriteMakefile renders the template into repoDir/Makefile. The template
// sees the package as its data, e.g. {{.Name}}.
func (w *Writer) WriteMakefile(pkg *models.Package, repoDir string) error {
	path, err := w.FindTemplate()
	if err != nil {
		return err
	}
	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").ParseFiles(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pkg); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	w.log.WithField("dest", repoDir).Info("updating Makefile")
	return renameio.WriteFile(filepath.Join(repoDir, "Makefile"), buf.Bytes(), 0o644)
}

// CommitMessage renders the configured commit message template for pkg.
func CommitMessage(text string, pkg *models.Package) (string, error) {
	tmpl, err := template.New("commit").Parse(text)
	if err != nil {
		return "", fmt.Errorf("commit message: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, pkg); err != nil {
		return "", fmt.Errorf("commit message: %w", err)
	}
	return b.String(), nil
}
