package ssh

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Connection represents an active SSH connection to a remote host
type Connection struct {
	Host       string
	Port       int
	User       string
	AuthMethod ssh.AuthMethod
	client     *ssh.Client
}

// KeyPair represents an SSH private key and, optionally, its public half
type KeyPair struct {
	Private []byte
	Public  []byte
}

// ConnectionOptions contains options for establishing an SSH connection
type ConnectionOptions struct {
	Host       string
	Port       int
	User       string
	AuthMethod ssh.AuthMethod
	Timeout    int // timeout in seconds, default 30

	// HostKeyCallback verifies the server key; nil accepts any key
	HostKeyCallback ssh.HostKeyCallback
}

// Validate validates the ConnectionOptions
func (opts *ConnectionOptions) Validate() error {
	if opts.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", opts.Port)
	}
	if opts.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if opts.AuthMethod == nil {
		return fmt.Errorf("auth method cannot be nil")
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// Address returns the host:port address string
func (opts *ConnectionOptions) Address() string {
	return net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))
}

// DefaultConnectionOptions returns ConnectionOptions with sensible defaults
func DefaultConnectionOptions(host, user string, auth ssh.AuthMethod) *ConnectionOptions {
	return &ConnectionOptions{
		Host:       host,
		Port:       22,
		User:       user,
		AuthMethod: auth,
		Timeout:    30,
	}
}

// Target is a parsed [user@]host[:port] connection string
type Target struct {
	User string
	Host string
	Port int
}

// ParseTarget parses a [user@]host[:port] string. Missing parts are left
// empty (user) or set to 22 (port).
func ParseTarget(s string) (*Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	t := &Target{Port: 22}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		t.User = s[:i]
		s = s[i+1:]
		if t.User == "" {
			return nil, fmt.Errorf("user cannot be empty in %q", s)
		}
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port given; bare IPv6 addresses may come with brackets
		t.Host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	} else {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid port %q", port)
		}
		t.Host = host
		t.Port = p
	}

	if t.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	return t, nil
}
