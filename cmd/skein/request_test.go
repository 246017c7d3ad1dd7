package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fentz26/skein/internal/models"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &out, "Grant?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if out.String() != "Grant? [y/N] " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestPrintRequest(t *testing.T) {
	var out bytes.Buffer
	printRequest(&out, &models.RepoRequest{ID: "r1", Name: "bash", Owner: "alice", State: models.RequestStateOpen})
	got := out.String()
	for _, want := range []string{"ID:      r1\n", "Name:    bash\n", "State:   open\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "Reason") {
		t.Errorf("empty reason printed: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a long summary", 8); got != "a lon..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("Überprüfungswerkzeug", 8); got != "Überp..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("日本語のパッケージ", 9); got != "日本語のパッケージ" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("日本語のパッケージ説明", 6); !utf8.ValidString(got) || got != "日本語..." {
		t.Errorf("truncate = %q", got)
	}
}
