package secrets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvSudoPassword is the environment variable holding a sudo password
const EnvSudoPassword = "BINDEPLOY_SUDO_PASSWORD"

// Resolver is the interface for sudo password sources. Implementations
// return an error wrapping ErrNotFound when they have nothing to offer.
type Resolver interface {
	Resolve(host string) (string, error)
}

// EnvResolver resolves the password from an environment variable
type EnvResolver struct {
	Var string
}

// NewEnvResolver creates a resolver reading BINDEPLOY_SUDO_PASSWORD
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{Var: EnvSudoPassword}
}

// Resolve returns the value of the environment variable
func (e *EnvResolver) Resolve(host string) (string, error) {
	value := os.Getenv(e.Var)
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrNotFound, e.Var)
	}
	return value, nil
}

// ReaderResolver reads the password from the first line of a reader,
// typically stdin
type ReaderResolver struct {
	Reader io.Reader
}

// Resolve reads one line and strips the line ending
func (r *ReaderResolver) Resolve(host string) (string, error) {
	line, err := bufio.NewReader(r.Reader).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("%w: empty password on input", ErrNotFound)
	}
	return password, nil
}

// PromptResolver asks for the password on the terminal without echo
type PromptResolver struct {
	In  *os.File
	Out io.Writer
}

// Resolve prompts for the sudo password of host
func (p *PromptResolver) Resolve(host string) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for sudo password: input is not a terminal")
	}

	fmt.Fprintf(p.Out, "[sudo] password for %s: ", host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("%w: empty password entered", ErrNotFound)
	}
	return string(password), nil
}

// KeyringResolver resolves the password stored with StoreSudoPassword
type KeyringResolver struct{}

// Resolve loads the stored password for host
func (KeyringResolver) Resolve(host string) (string, error) {
	return LoadSudoPassword(host)
}
