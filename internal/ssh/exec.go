package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/crypto/ssh"
)

// ExecResult contains the result of a command execution
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a command that ran to completion with a non-zero status
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Err returns an *ExitError for a non-zero exit status, nil otherwise
func (r *ExecResult) Err(command string) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Command: command, ExitCode: r.ExitCode, Stderr: r.Stderr}
}

// ExecOptions controls a single command execution
type ExecOptions struct {
	// Stdin is fed to the remote command
	Stdin io.Reader
	// Stdout and Stderr additionally receive the command output as it is produced
	Stdout io.Writer
	Stderr io.Writer
	// Pty requests a pseudo-terminal; stderr is merged into stdout by the remote side
	Pty bool
	// Timeout aborts the command; zero means no timeout
	Timeout time.Duration
}

// Exec executes a command on the remote host and returns the result
func (c *Connection) Exec(command string) (*ExecResult, error) {
	return c.ExecWithTimeout(command, 60*time.Second)
}

// ExecWithTimeout executes a command with a specified timeout
func (c *Connection) ExecWithTimeout(command string, timeout time.Duration) (*ExecResult, error) {
	return c.ExecWithOptions(context.Background(), command, ExecOptions{Timeout: timeout})
}

// ExecWithOptions executes a command honoring ctx and the given options.
// A non-zero exit status is reported in ExecResult.ExitCode, not as an error.
func (c *Connection) ExecWithOptions(ctx context.Context, command string, opts ExecOptions) (*ExecResult, error) {
	if c.client == nil {
		return nil, fmt.Errorf("connection is not established")
	}

	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	if opts.Pty {
		modes := ssh.TerminalModes{
			ssh.ECHO:          0,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty("xterm", 40, 200, modes); err != nil {
			return nil, fmt.Errorf("failed to request pty: %w", err)
		}
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = teeWriter(&stdout, opts.Stdout)
	session.Stderr = teeWriter(&stderr, opts.Stderr)
	if opts.Stdin != nil {
		session.Stdin = opts.Stdin
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Try to signal the session to stop (best effort)
		session.Signal(ssh.SIGTERM)
		session.Close()
		if opts.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out after %v", opts.Timeout)
		}
		return nil, fmt.Errorf("command aborted: %w", ctx.Err())
	case err := <-done:
		result := &ExecResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: 0,
		}

		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				result.ExitCode = exitErr.ExitStatus()
			} else {
				return nil, fmt.Errorf("failed to execute command: %w", err)
			}
		}

		return result, nil
	}
}

// Upload copies a local file to remotePath on the remote host with the given
// permissions. The content is streamed through the session's stdin.
func (c *Connection) Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) error {
	if c.client == nil {
		return fmt.Errorf("connection is not established")
	}
	if remotePath == "" {
		return fmt.Errorf("remote path cannot be empty")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	target := shellescape.Quote(remotePath)
	command := fmt.Sprintf("cat > %s && chmod %o %s", target, mode.Perm(), target)

	result, err := c.ExecWithOptions(ctx, command, ExecOptions{Stdin: file})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	if err := result.Err(command); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, remotePath, err)
	}

	return nil
}

func teeWriter(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
