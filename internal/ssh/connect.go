package ssh

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Connect establishes an SSH connection to a remote host
func Connect(opts *ConnectionOptions) (*Connection, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection options: %w", err)
	}

	hostKeyCallback := opts.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{opts.AuthMethod},
		HostKeyCallback: hostKeyCallback,
		Timeout:         time.Duration(opts.Timeout) * time.Second,
	}

	// If timeout is 0, use default
	if opts.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client, err := ssh.Dial("tcp", opts.Address(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address(), err)
	}

	conn := &Connection{
		Host:       opts.Host,
		Port:       opts.Port,
		User:       opts.User,
		AuthMethod: opts.AuthMethod,
		client:     client,
	}

	return conn, nil
}

// KnownHostsCallback returns a host key callback backed by the given
// known_hosts files. Files that do not exist are skipped; if none exist the
// callback is nil and Connect accepts any host key.
func KnownHostsCallback(files ...string) (ssh.HostKeyCallback, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil, nil
	}

	callback, err := knownhosts.New(existing...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return callback, nil
}

// Close closes the SSH connection
func (c *Connection) Close() error {
	if c.client == nil {
		return fmt.Errorf("connection is not established")
	}
	return c.client.Close()
}

// IsConnected checks if the connection is still active
func (c *Connection) IsConnected() bool {
	if c.client == nil {
		return false
	}

	// Try to create a new session to verify the connection is alive
	session, err := c.client.NewSession()
	if err != nil {
		return false
	}
	session.Close()

	return true
}
