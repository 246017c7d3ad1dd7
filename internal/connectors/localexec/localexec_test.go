package localexec

import (
	"context"
	"strings"
	"testing"

	"github.com/fentz26/skein/internal/logging"
)

func TestIsAllowed(t *testing.T) {
	exec := New("", logging.Discard())

	tests := []struct {
		cmd     string
		args    []string
		allowed bool
	}{
		{"rpm", []string{"-qp", "--qf", "%{NAME}", "bash-4.1-2.src.rpm"}, true},
		{"rpm", []string{"-i", "--root=/tmp/bash", "bash-4.1-2.src.rpm"}, true},
		{"rsync", []string{"-loDtRz", "-e", "ssh", "bash/bash-4.1.tar.gz", "u@h:/srv/cache/"}, true},
		{"rpm", []string{"-e", "bash"}, false},           // erase not in allowlist
		{"rsync", []string{"--delete", "a", "b"}, false}, // mode not allowed
		{"rm", []string{"-rf", "/"}, false},              // not in allowlist
		{"rpm", []string{}, false},                       // no mode
		{"unknown", []string{"cmd"}, false},              // unknown command
	}

	for _, tt := range tests {
		t.Run(tt.cmd+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			got := exec.IsAllowed(tt.cmd, tt.args)
			if got != tt.allowed {
				t.Errorf("IsAllowed(%s, %v) = %v, want %v", tt.cmd, tt.args, got, tt.allowed)
			}
		})
	}
}

func TestExecute_NotAllowed(t *testing.T) {
	exec := New("", logging.Discard())

	ctx := context.Background()
	_, err := exec.Execute(ctx, "rm", []string{"-rf", "/"})

	if err == nil {
		t.Error("Expected error for non-allowed command")
	}
	if err != nil && !strings.Contains(err.Error(), "command not allowed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIn(t *testing.T) {
	base := New("", logging.Discard())
	sub := base.In("/srv/cache")
	if sub.workDir != "/srv/cache" || base.workDir != "" {
		t.Errorf("In() changed the wrong connector: base=%q sub=%q", base.workDir, sub.workDir)
	}
}

func TestName(t *testing.T) {
	exec := New("", logging.Discard())
	if exec.Name() != "localexec" {
		t.Errorf("Expected name 'localexec', got %s", exec.Name())
	}
}
