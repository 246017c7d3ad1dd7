// Package config loads the skein configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "/etc/skein/skein.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds every section of the skein configuration.
type Config struct {
	Skein     SkeinConfig     `yaml:"skein"`
	Koji      KojiConfig      `yaml:"koji"`
	Git       GitConfig       `yaml:"git"`
	Lookaside LookasideConfig `yaml:"lookaside"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// SkeinConfig covers local paths and import behavior.
type SkeinConfig struct {
	// InstallRoot is where source packages are installed, one root per package.
	InstallRoot string `yaml:"install_root"`
	// BaseDir holds one git working copy per package.
	BaseDir string `yaml:"base_dir"`
	// LookasideDir holds the local copy of the binary sources, one dir per package.
	LookasideDir string `yaml:"lookaside_dir"`
	// RPMBuildHome is the home directory rpm installs into, relative to the install root.
	RPMBuildHome string `yaml:"rpmbuild_home"`
	// MakefilePath is a colon separated search list for the Makefile template.
	MakefilePath string `yaml:"makefile_path"`
	MakefileName string `yaml:"makefile_name"`
	// CommitMessage is a text/template rendered with the package.
	CommitMessage string `yaml:"commit_message"`
	TeamPrefix    string `yaml:"team_prefix"`
	DBPath        string `yaml:"db_path"`
	AuthorName    string `yaml:"author_name"`
	AuthorEmail   string `yaml:"author_email"`
}

// KojiConfig describes the build hub.
type KojiConfig struct {
	Server   string `yaml:"server"`
	WebURL   string `yaml:"weburl"`
	Username string `yaml:"username"`
	Cert     string `yaml:"cert"`
	CA       string `yaml:"ca"`
	ServerCA string `yaml:"serverca"`
	// LatestTag is the tag packages are added to when granting a request.
	LatestTag string `yaml:"latest_tag"`
	// BuildSourceTemplate is formatted with the package name to form the build source.
	BuildSourceTemplate string        `yaml:"build_source_template"`
	Priority            int           `yaml:"priority"`
	PollInterval        time.Duration `yaml:"poll_interval"`
}

// GitConfig selects the repo-hosting backend and the origin URL layout.
type GitConfig struct {
	// Backend names a registered gitremote backend.
	Backend string `yaml:"backend"`
	// RemoteURLTemplate is formatted with the package name to form the origin URL.
	RemoteURLTemplate string `yaml:"remote_url_template"`
	Org               string `yaml:"org"`
	RequestRepo       string `yaml:"request_repo"`
	// TokenEnv names the environment variable holding the hosting API token.
	TokenEnv  string `yaml:"token_env"`
	LocalRoot string `yaml:"local_root"`
}

// LookasideConfig describes the binary cache upload target.
type LookasideConfig struct {
	Host      string `yaml:"host"`
	User      string `yaml:"user"`
	RemoteDir string `yaml:"remote_dir"`
}

// LoggerConfig configures the log target.
type LoggerConfig struct {
	// File is the log file path; empty logs to stderr.
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Skein: SkeinConfig{
			InstallRoot:   "/var/tmp/skein/install",
			BaseDir:       filepath.Join(home, "rpmbuild", "git"),
			LookasideDir:  filepath.Join(home, "rpmbuild", "lookaside"),
			RPMBuildHome:  home,
			MakefilePath:  "/etc/skein:~/.skein",
			MakefileName:  "Makefile.tpl",
			CommitMessage: "Import {{.NVR}}",
			TeamPrefix:    "pkg",
			DBPath:        filepath.Join(home, ".skein", "skein.db"),
			AuthorName:    "skein",
			AuthorEmail:   "skein@localhost",
		},
		Koji: KojiConfig{
			Server:              "http://localhost/kojihub",
			WebURL:              "http://localhost/koji",
			Cert:                "~/.koji/client.crt",
			CA:                  "~/.koji/clientca.crt",
			ServerCA:            "~/.koji/serverca.crt",
			LatestTag:           "dist-latest",
			BuildSourceTemplate: "git://localhost/%s.git#HEAD",
			Priority:            5,
			PollInterval:        time.Second,
		},
		Git: GitConfig{
			Backend:           "local",
			RemoteURLTemplate: "file:///srv/git/%s.git",
			LocalRoot:         "/srv/git",
			TokenEnv:          "SKEIN_GITHUB_TOKEN",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration at path on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.expandPaths()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Skein.InstallRoot == "" {
		return fmt.Errorf("%w: skein.install_root is required", ErrInvalid)
	}
	if c.Skein.BaseDir == "" {
		return fmt.Errorf("%w: skein.base_dir is required", ErrInvalid)
	}
	if !strings.Contains(c.Git.RemoteURLTemplate, "%s") {
		return fmt.Errorf("%w: git.remote_url_template must contain %%s", ErrInvalid)
	}
	if !strings.Contains(c.Koji.BuildSourceTemplate, "%s") {
		return fmt.Errorf("%w: koji.build_source_template must contain %%s", ErrInvalid)
	}
	if c.Koji.PollInterval <= 0 {
		return fmt.Errorf("%w: koji.poll_interval must be positive", ErrInvalid)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logger.Format] {
		return fmt.Errorf("%w: logger.format %q, must be: text or json", ErrInvalid, c.Logger.Format)
	}
	return nil
}

// OriginURL returns the expected origin URL for a package repository.
func (c *Config) OriginURL(name string) string {
	return fmt.Sprintf(c.Git.RemoteURLTemplate, name)
}

// BuildSource returns the build source reference for a package.
func (c *Config) BuildSource(name string) string {
	return fmt.Sprintf(c.Koji.BuildSourceTemplate, name)
}

// TaskURL returns the web page for a task.
func (c *Config) TaskURL(taskID int) string {
	return fmt.Sprintf("%s/taskinfo?taskID=%d", strings.TrimRight(c.Koji.WebURL, "/"), taskID)
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Koji.Cert, &c.Koji.CA, &c.Koji.ServerCA, &c.Skein.DBPath, &c.Logger.File} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
