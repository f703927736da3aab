package env

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"

	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/ssh"
)

// DialOptions describes the remote host to connect to
type DialOptions struct {
	// Target is [user@]host[:port]
	Target string
	// Identity is a private key file; empty searches the key store and ~/.ssh
	Identity string
	// SudoPassword is the sudo credential; empty means none
	SudoPassword string
}

// Dial opens the remote executor. Tests may replace it.
var Dial = DialSSH

// DialSSH connects over SSH and returns a remote.Host for the target
func DialSSH(ctx context.Context, opts DialOptions, log *logrus.Entry) (remote.Executor, io.Closer, error) {
	conn, err := Connect(opts.Target, opts.Identity)
	if err != nil {
		return nil, nil, err
	}

	log.Debugf("connected to %s@%s:%d", conn.User, conn.Host, conn.Port)
	return remote.NewHost(conn, conn.Host, opts.SudoPassword, log), conn, nil
}

// Connect opens an SSH connection to target, verifying the host key
// against ~/.ssh/known_hosts when that file exists
func Connect(target, identity string) (*ssh.Connection, error) {
	t, err := ssh.ParseTarget(target)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", target, err)
	}

	if t.User == "" {
		current, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to determine login user: %w", err)
		}
		t.User = current.Username
	}

	auth, err := authMethod(t.Host, identity)
	if err != nil {
		return nil, err
	}

	opts := ssh.DefaultConnectionOptions(t.Host, t.User, auth)
	opts.Port = t.Port

	if home, err := os.UserHomeDir(); err == nil {
		callback, err := ssh.KnownHostsCallback(filepath.Join(home, ".ssh", "known_hosts"))
		if err != nil {
			return nil, err
		}
		opts.HostKeyCallback = callback
	}

	return ssh.Connect(opts)
}

// authMethod picks the first available credential: the identity file, the
// key store entry for host, a conventional key in ~/.ssh, then ssh-agent
func authMethod(host, identity string) (gossh.AuthMethod, error) {
	if identity != "" {
		key, err := ssh.LoadKeyFile(identity)
		if err != nil {
			return nil, fmt.Errorf("failed to load identity %s: %w", identity, err)
		}
		return key.AuthMethod()
	}

	if dir, err := config.GetConfigDir(); err == nil {
		store, err := ssh.NewKeyStore(filepath.Join(dir, "keys"))
		if err != nil {
			return nil, err
		}
		if ok, _ := store.Exists(host); ok {
			key, err := store.Load(host)
			if err != nil {
				return nil, err
			}
			return key.AuthMethod()
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		for _, path := range ssh.DefaultKeyFiles(home) {
			key, err := ssh.LoadKeyFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return key.AuthMethod()
		}
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("failed to reach ssh-agent: %w", err)
		}
		return gossh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
	}

	return nil, fmt.Errorf("no SSH key found for %s: pass --identity or add a key to ~/.ssh", host)
}

// TargetHost returns the host part of a [user@]host[:port] target
func TargetHost(target string) (string, error) {
	t, err := ssh.ParseTarget(target)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", target, err)
	}
	return t.Host, nil
}
