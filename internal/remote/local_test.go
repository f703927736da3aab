package remote

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logrus.NewEntry(logger), &buf
}

func TestLocal_Run(t *testing.T) {
	log, buf := testLogger()
	l := NewLocal(log)
	assert.False(t, l.Remote())
	assert.False(t, l.HasSudo())

	t.Run("logs output lines", func(t *testing.T) {
		buf.Reset()
		result, err := l.Run(context.Background(), "echo first; echo second")
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", result.Stdout)
		assert.Contains(t, buf.String(), "msg=first")
		assert.Contains(t, buf.String(), "msg=second")
	})

	t.Run("hide keeps output out of the log", func(t *testing.T) {
		buf.Reset()
		result, err := l.Run(context.Background(), "echo quiet", Hide())
		require.NoError(t, err)
		assert.Equal(t, "quiet\n", result.Stdout)
		assert.NotContains(t, buf.String(), "msg=quiet")
	})

	t.Run("non-zero exit is an error", func(t *testing.T) {
		result, err := l.Run(context.Background(), "echo bad >&2; exit 4", Hide())
		require.Error(t, err)

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 4, exitErr.ExitCode)
		assert.Equal(t, 4, result.ExitCode)
		assert.Equal(t, "bad\n", result.Stderr)
	})

	t.Run("warn returns the result", func(t *testing.T) {
		result, err := l.Run(context.Background(), "exit 1", Hide(), Warn())
		require.NoError(t, err)
		assert.Equal(t, 1, result.ExitCode)
	})

	t.Run("env and dir", func(t *testing.T) {
		dir := t.TempDir()
		result, err := l.Run(context.Background(), `echo "$ZONE"; pwd`, Hide(),
			Env(map[string]string{"ZONE": "example.com"}), Dir(dir))
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "example.com", lines[0])

		want, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(lines[1])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := l.Run(ctx, "sleep 5", Hide())
		require.Error(t, err)

		var exitErr *ExitError
		assert.NotErrorAs(t, err, &exitErr)
	})
}

func TestLocal_Sudo(t *testing.T) {
	log, _ := testLogger()
	_, err := NewLocal(log).Sudo(context.Background(), "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestLocal_Put(t *testing.T) {
	log, _ := testLogger()
	dir := t.TempDir()

	src := filepath.Join(dir, "updzone_example.com.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0755))

	dst := filepath.Join(dir, "out", "job")
	require.NoError(t, NewLocal(log).Put(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	err = NewLocal(log).Put(context.Background(), filepath.Join(dir, "missing"), dst)
	assert.Error(t, err)
}

func TestOptions_ShellCommand(t *testing.T) {
	o := collect([]Option{
		Dir("/etc/bind"),
		Env(map[string]string{"B": "two words", "A": "1"}),
	})
	assert.Equal(t, "cd /etc/bind && export A=1 && export B='two words' && ls", o.shellCommand("ls"))

	assert.Equal(t, "ls", collect(nil).shellCommand("ls"))
}

func TestLineLogger(t *testing.T) {
	log, buf := testLogger()
	l := newLineLogger(log, logrus.InfoLevel)

	_, err := l.Write([]byte("par"))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = l.Write([]byte("tial\nnext"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "msg=partial")
	assert.NotContains(t, buf.String(), "msg=next")

	l.Flush()
	assert.Contains(t, buf.String(), "msg=next")
}
