// Package lookaside manages the binary source cache: the local copy of each
// package's sources, the checksum manifest committed to git, and the upload
// to the cache host.
package lookaside

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/connectors"
	"github.com/fentz26/skein/internal/models"
	"github.com/google/renameio"
	"github.com/sirupsen/logrus"
)

// ManifestName is the checksum manifest written into each package repository.
const ManifestName = "sources"

// Cache is the local lookaside directory.
type Cache struct {
	dir    string
	remote config.LookasideConfig
	exec   connectors.Connector
	log    logrus.FieldLogger
}

// New creates a Cache rooted at dir.
func New(dir string, remote config.LookasideConfig, exec connectors.Connector, log logrus.FieldLogger) *Cache {
	return &Cache{dir: dir, remote: remote, exec: exec, log: log}
}

// PackageDir is where the sources of name are kept.
func (c *Cache) PackageDir(name string) string {
	return filepath.Join(c.dir, name)
}

// Stage copies the package's sources from srcDir into the cache.
func (c *Cache) Stage(pkg *models.Package, srcDir string) error {
	dest := c.PackageDir(pkg.Name)
	if err := os.MkdirAll(dest, 0o775); err != nil {
		return err
	}
	for _, source := range pkg.Sources {
		c.log.WithFields(logrus.Fields{"source": source, "dest": dest}).Info("copying source")
		if err := CopyFile(filepath.Join(srcDir, source), filepath.Join(dest, source)); err != nil {
			return err
		}
	}
	return nil
}

// Checksum returns the hex sha256 of the cached source.
func (c *Cache) Checksum(name, source string) (string, error) {
	f, err := os.Open(filepath.Join(c.PackageDir(name), source))
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", source, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteManifest replaces repoDir/sources with one "<sha256> *<file>" line per
// cached source.
func (c *Cache) WriteManifest(pkg *models.Package, repoDir string) error {
	var b strings.Builder
	for _, source := range pkg.Sources {
		sum, err := c.Checksum(pkg.Name, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s *%s\n", sum, source)
	}
	path := filepath.Join(repoDir, ManifestName)
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	c.log.WithField("path", path).Info("sha256sums generated")
	return nil
}

// AppendManifest adds lines for sources missing from repoDir/sources,
// keeping existing entries untouched.
func (c *Cache) AppendManifest(pkg *models.Package, repoDir string) error {
	path := filepath.Join(repoDir, ManifestName)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	listed := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		if _, file, ok := strings.Cut(line, " *"); ok {
			listed[file] = true
		}
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteByte('\n')
	}
	for _, source := range pkg.Sources {
		if listed[source] {
			continue
		}
		sum, err := c.Checksum(pkg.Name, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s *%s\n", sum, source)
	}
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Upload sends each source to the cache host, preserving the
// <name>/<file> layout relative to the cache root. Sources are named by
// absolute path with a "/./" anchor, so the connector's working directory
// does not matter.
func (c *Cache) Upload(ctx context.Context, pkg *models.Package) error {
	if c.remote.Host == "" {
		return fmt.Errorf("lookaside host not configured")
	}
	root, err := filepath.Abs(c.dir)
	if err != nil {
		return fmt.Errorf("lookaside dir: %w", err)
	}
	target := fmt.Sprintf("%s:%s/", c.remote.Host, strings.TrimRight(c.remote.RemoteDir, "/"))
	if c.remote.User != "" {
		target = c.remote.User + "@" + target
	}
	for _, source := range pkg.Sources {
		c.log.WithFields(logrus.Fields{"source": source, "host": c.remote.Host}).Info("uploading source")
		rel := pkg.Name + "/" + source
		src := root + "/./" + rel
		res, err := c.exec.Execute(ctx, "rsync", []string{"-loDtRz", "-e", "ssh", src, target})
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("upload %s: rsync exited %d: %s", rel, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}
	return nil
}

// CopyFile copies src to dst atomically, keeping the mode and
// modification time.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
