package runner

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

func TestExecRunner_Run(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("expected hello, got %q", out)
	}
}

func TestExecRunner_RunWithInput(t *testing.T) {
	r := New()
	out, err := r.RunWithInput(context.Background(), strings.NewReader("s3cr3t"), "cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "s3cr3t" {
		t.Errorf("expected stdin to be echoed, got %q", out)
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	r := New()
	out, err := r.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != 3 {
		t.Errorf("expected exit code 3, got %d", got)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should include output, got %v", err)
	}
	if !strings.Contains(string(out), "boom") {
		t.Errorf("output should be returned on failure, got %q", out)
	}
}

func TestExecRunner_NotFound(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), "labctl-definitely-missing-binary")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := r.LookPath("labctl-definitely-missing-binary"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND from LookPath, got %v", err)
	}
}

func TestExecRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New()
	_, err := r.Run(ctx, "sleep", "5")
	if !apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT, got %v", err)
	}
}

func TestExecRunner_DryRun(t *testing.T) {
	r := New(WithDryRun(true))
	out, err := r.Run(context.Background(), "sh", "-c", "exit 1")
	if err != nil {
		t.Fatalf("dry-run should not execute, got %v", err)
	}
	if len(out) != 0 {
		t.Errorf("dry-run should return no output, got %q", out)
	}
}

func TestExecRunner_Env(t *testing.T) {
	r := New(WithEnv("LABCTL_TEST_VALUE=42"))
	out, err := r.Run(context.Background(), "sh", "-c", "printf %s \"$LABCTL_TEST_VALUE\"")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "42" {
		t.Errorf("expected env to be passed, got %q", out)
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"snap", []string{"list", "microk8s"}, "snap list microk8s"},
		{"sg", []string{"microk8s", "-c", "labctl bootstrap"}, `sg microk8s -c "labctl bootstrap"`},
		{"true", nil, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := CommandLine(tt.name, tt.args...); got != tt.want {
				t.Errorf("CommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder().
		On("snap list microk8s", Response{ExitCode: 1, Output: "error: no matching snaps installed"}).
		On("snap list", Response{Output: "core"}).
		On("helm version", Response{Output: "v3.15.0"}).
		On("helm version", Response{Output: "v3.16.0"}).
		Missing("gh")
	ctx := context.Background()

	if _, err := rec.Run(ctx, "snap", "list", "microk8s"); err == nil || ExitCode(err) != 1 {
		t.Errorf("expected scripted failure with exit 1, got %v", err)
	}
	if out, _ := rec.Run(ctx, "snap", "list"); string(out) != "core" {
		t.Errorf("expected shorter prefix match, got %q", out)
	}
	first, _ := rec.Run(ctx, "helm", "version")
	second, _ := rec.Run(ctx, "helm", "version")
	third, _ := rec.Run(ctx, "helm", "version")
	if string(first) != "v3.15.0" || string(second) != "v3.16.0" || string(third) != "v3.16.0" {
		t.Errorf("unexpected queued responses: %q %q %q", first, second, third)
	}
	if _, err := rec.RunWithInput(ctx, strings.NewReader("token"), "gh", "secret", "set", "X"); err != nil {
		t.Errorf("unmatched command should succeed, got %v", err)
	}
	if _, err := rec.LookPath("gh"); err == nil {
		t.Error("expected gh to be reported missing")
	}

	calls := rec.Calls()
	if len(calls) != 6 {
		t.Fatalf("expected 6 calls, got %d", len(calls))
	}
	if calls[5].Stdin != "token" {
		t.Errorf("expected stdin to be recorded, got %q", calls[5].Stdin)
	}
	if !rec.Called("gh secret set") {
		t.Error("expected Called to match prefix")
	}
}

func TestAsRoot(t *testing.T) {
	orig := Euid
	t.Cleanup(func() { Euid = orig })

	Euid = func() int { return 0 }
	r := NewRecorder()
	if _, err := AsRoot(context.Background(), r, "usermod", "-a", "-G", "microk8s", "lab"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Called("usermod -a -G microk8s lab") {
		t.Errorf("expected direct call, got %v", r.CommandLines())
	}

	Euid = func() int { return 1000 }
	r = NewRecorder()
	if _, err := AsRoot(context.Background(), r, "usermod", "-a", "-G", "microk8s", "lab"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Called("sudo -n usermod -a -G microk8s lab") {
		t.Errorf("expected sudo call, got %v", r.CommandLines())
	}
}
