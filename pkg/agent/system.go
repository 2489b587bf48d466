package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotPrivileged is returned when the agent runs without root or
// password-less sudo
var ErrNotPrivileged = errors.New("ice-agent must run as root or with password-less sudo")

// Runner executes a system command and returns its standard output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CheckPrivileges succeeds when uid is root or sudo can be used without a
// password
func CheckPrivileges(ctx context.Context, runner Runner, uid int) error {
	if uid == 0 {
		return nil
	}
	out, err := runner.Run(ctx, "sudo", "-n", "whoami")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPrivileged, err)
	}
	if strings.TrimSpace(string(out)) != "root" {
		return ErrNotPrivileged
	}
	return nil
}

// privileged prefixes a command with sudo when not running as root
func privileged(uid int, name string, args ...string) (string, []string) {
	if uid == 0 {
		return name, args
	}
	return "sudo", append([]string{"-n", name}, args...)
}
