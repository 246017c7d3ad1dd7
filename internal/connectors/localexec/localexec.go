// Package localexec provides a local command executor with an allowlist.
package localexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fentz26/skein/internal/connectors"
	"github.com/sirupsen/logrus"
)

// allowedCommands maps each executable to the leading arguments it may be
// invoked with: package queries and installs, and the lookaside upload.
var allowedCommands = map[string][]string{
	"rpm":   {"-qp", "-i"},
	"rsync": {"-loDtRz"},
}

// LocalExec implements the Connector interface for local command execution.
type LocalExec struct {
	workDir string
	log     logrus.FieldLogger
}

// New creates a new LocalExec connector running commands in workDir.
func New(workDir string, log logrus.FieldLogger) *LocalExec {
	return &LocalExec{workDir: workDir, log: log}
}

// In returns a connector sharing this one's logger that runs in dir.
func (l *LocalExec) In(dir string) *LocalExec {
	return &LocalExec{workDir: dir, log: l.log}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	allowedArgs, ok := allowedCommands[cmd]
	if !ok {
		return false
	}

	if len(args) == 0 {
		return false
	}

	mode := args[0]
	for _, allowed := range allowedArgs {
		if mode == allowed {
			return true
		}
	}
	return false
}

// Execute runs a command if it's in the allowlist.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd, args) {
		return nil, fmt.Errorf("command not allowed: %s %s", cmd, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	l.log.WithFields(logrus.Fields{"cmd": cmd, "args": args, "dir": l.workDir}).Debug("exec")
	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		Dir:      l.workDir,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
