// Package srpm reads source package headers and unpacks source packages
// into a private install root.
package srpm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fentz26/skein/internal/connectors"
	"github.com/fentz26/skein/internal/models"
	"github.com/sirupsen/logrus"
)

// queryFormat prints one key=value line per header value.
const queryFormat = "NAME=%{NAME}\\nVERSION=%{VERSION}\\nRELEASE=%{RELEASE}\\n" +
	"SUMMARY=%{SUMMARY}\\nURL=%{URL}\\n" +
	"[SOURCE=%{SOURCE}\\n][PATCH=%{PATCH}\\n][REQUIRES=%{REQUIRES}\\n]"

// Tool drives rpm through an allowlisted connector.
type Tool struct {
	exec connectors.Connector
	log  logrus.FieldLogger
}

// New creates a Tool.
func New(exec connectors.Connector, log logrus.FieldLogger) *Tool {
	return &Tool{exec: exec, log: log}
}

// Query reads the header of the source package at path.
func (t *Tool) Query(ctx context.Context, path string) (*models.Package, error) {
	t.log.WithField("srpm", path).Info("querying srpm")
	res, err := t.exec.Execute(ctx, "rpm", []string{"-qp", "--nosignature", "--qf", queryFormat, path})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("query %s: rpm exited %d: %s", path, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	pkg, err := parseHeader(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	return pkg, nil
}

func parseHeader(out string) (*models.Package, error) {
	pkg := &models.Package{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		if value == "(none)" {
			value = ""
		}
		switch key {
		case "NAME":
			pkg.Name = value
		case "VERSION":
			pkg.Version = value
		case "RELEASE":
			pkg.Release = value
		case "SUMMARY":
			pkg.Summary = value
		case "URL":
			pkg.URL = value
		case "SOURCE":
			pkg.Sources = append(pkg.Sources, value)
		case "PATCH":
			pkg.Patches = append(pkg.Patches, value)
		case "REQUIRES":
			// rpmlib() capabilities are provided by rpm itself.
			if !strings.HasPrefix(value, "rpmlib(") {
				pkg.BuildRequires = append(pkg.BuildRequires, value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("no package name in header")
	}
	return pkg, nil
}

// Install unpacks the source package at path below root.
func (t *Tool) Install(ctx context.Context, path, root string) error {
	if err := os.MkdirAll(root, 0o775); err != nil {
		return fmt.Errorf("create install root: %w", err)
	}
	t.log.WithFields(logrus.Fields{"srpm": path, "root": root}).Info("installing srpm")
	res, err := t.exec.Execute(ctx, "rpm", []string{"-i", "--nosignature", "--root=" + root, path})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("install %s: rpm exited %d: %s", path, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Layout locates the files rpm unpacked for one package.
type Layout struct {
	// Root is the package's install root.
	Root string
	// Home is the build user's home directory inside Root.
	Home string
}

// NewLayout returns the layout of pkg below installRoot.
func NewLayout(installRoot, home, name string) Layout {
	return Layout{Root: filepath.Join(installRoot, name), Home: home}
}

// SourcesDir holds the package's sources and patches.
func (l Layout) SourcesDir() string {
	return filepath.Join(l.Root, l.Home, "rpmbuild", "SOURCES")
}

// SpecFile is the package's spec file.
func (l Layout) SpecFile(name string) string {
	return filepath.Join(l.Root, l.Home, "rpmbuild", "SPECS", name+".spec")
}

// List expands path into the source packages it names: the file itself, or
// every regular .rpm file in a directory, sorted.
func List(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not valid: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".rpm") {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
