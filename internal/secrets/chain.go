package secrets

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ChainResolver tries multiple resolvers in order until one succeeds
type ChainResolver struct {
	resolvers []Resolver
}

// NewChainResolver creates a new chain resolver with the given resolvers
// Resolvers are tried in the order they are provided
func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{
		resolvers: resolvers,
	}
}

// Resolve tries each resolver in order until one succeeds. When every
// resolver reports ErrNotFound the returned error wraps ErrNotFound;
// otherwise it aggregates the other failures and does not match ErrNotFound.
func (c *ChainResolver) Resolve(host string) (string, error) {
	var result *multierror.Error

	for _, resolver := range c.resolvers {
		value, err := resolver.Resolve(host)
		if err == nil {
			return value, nil
		}

		if !errors.Is(err, ErrNotFound) {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return "", fmt.Errorf("failed to resolve sudo password for %s: %w", host, err)
	}

	return "", fmt.Errorf("%w for %s after trying %d source(s)", ErrNotFound, host, len(c.resolvers))
}
