package sudo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/catalystcommunity/bindeploy/internal/ssh"
)

// ErrBadPassword is returned when the remote host rejects the sudo password
var ErrBadPassword = errors.New("sudo password rejected")

// CommandExecutor is an interface for executing remote commands
type CommandExecutor interface {
	Exec(cmd string) (*ssh.ExecResult, error)
}

// OptionsExecutor runs a command with stdin and pty control
type OptionsExecutor interface {
	ExecWithOptions(ctx context.Context, cmd string, opts ssh.ExecOptions) (*ssh.ExecResult, error)
}

// SudoStatus represents the state of sudo access for a user
type SudoStatus int

const (
	// SudoNotInstalled means the sudo command is not available on the system
	SudoNotInstalled SudoStatus = iota
	// SudoNoAccess means sudo is installed but user is not in sudoers
	SudoNoAccess
	// SudoRequiresPassword means user has sudo but must enter a password
	SudoRequiresPassword
	// SudoPasswordless means user has full passwordless sudo access
	SudoPasswordless
)

// String returns a human-readable description of the sudo status
func (s SudoStatus) String() string {
	switch s {
	case SudoNotInstalled:
		return "sudo not installed"
	case SudoNoAccess:
		return "user not in sudoers"
	case SudoRequiresPassword:
		return "sudo requires password"
	case SudoPasswordless:
		return "passwordless sudo configured"
	default:
		return "unknown"
	}
}

// GetSudoStatus returns the detailed sudo status for the current user
func GetSudoStatus(executor CommandExecutor) (SudoStatus, error) {
	// First check if sudo command exists
	result, err := executor.Exec("which sudo")
	if err != nil {
		return SudoNotInstalled, fmt.Errorf("failed to check for sudo: %w", err)
	}

	if result.ExitCode != 0 {
		return SudoNotInstalled, nil
	}

	// Check if user can run sudo without password
	result, err = executor.Exec("sudo -n true 2>&1")
	if err != nil {
		return SudoNoAccess, fmt.Errorf("failed to test sudo access: %w", err)
	}

	if result.ExitCode == 0 {
		return SudoPasswordless, nil
	}

	// Some systems print the prompt error on stdout
	output := result.Stderr
	if output == "" {
		output = result.Stdout
	}

	if strings.Contains(output, "password is required") {
		return SudoRequiresPassword, nil
	}

	return SudoNoAccess, nil
}

// Wrap builds a command line that runs cmd as root through a shell.
// With a password the prompt is silenced and the password is read from
// stdin (see Stdin); without one sudo must not prompt at all.
func Wrap(cmd string, withPassword bool) string {
	if withPassword {
		return fmt.Sprintf("sudo -S -p '' sh -c '%s'", escapeForShell(cmd))
	}
	return fmt.Sprintf("sudo -n sh -c '%s'", escapeForShell(cmd))
}

// Stdin returns the reader to feed a command built by Wrap. The password
// line comes first, followed by rest when it is not nil.
func Stdin(password string, rest io.Reader) io.Reader {
	line := strings.NewReader(password + "\n")
	if rest == nil {
		return line
	}
	return io.MultiReader(line, rest)
}

// Verify checks that password grants sudo on the remote host. The cached
// credential is dropped first so the password is actually tested.
func Verify(ctx context.Context, executor OptionsExecutor, password string) error {
	result, err := executor.ExecWithOptions(ctx, "sudo -k -S -p '' true", ssh.ExecOptions{
		Stdin: Stdin(password, nil),
	})
	if err != nil {
		return fmt.Errorf("failed to verify sudo password: %w", err)
	}

	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s", ErrBadPassword, strings.TrimSpace(result.Stderr))
	}

	return nil
}

// escapeForShell escapes a string for use in single-quoted shell command
// Single quotes can't be escaped inside single quotes, so we end the quote,
// add an escaped single quote, then start a new quote
func escapeForShell(s string) string {
	return strings.ReplaceAll(s, "'", "'\\''")
}
