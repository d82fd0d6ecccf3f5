package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider matches every UnknownProviderError via errors.Is.
var ErrUnknownProvider = errors.New("unknown provider")

// UnknownProviderError represents a provider name outside the supported set
type UnknownProviderError struct {
	Name      string     // Name as given by the caller
	Available []Provider // Supported providers
}

// Error implements the error interface
func (e *UnknownProviderError) Error() string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("provider '%s' is not supported", e.Name))

	if len(e.Available) > 0 {
		names := make([]string, len(e.Available))
		for i, p := range e.Available {
			names[i] = string(p)
		}
		msg.WriteString(fmt.Sprintf(" (available: %s)", strings.Join(names, ", ")))
	}

	return msg.String()
}

// Is reports ErrUnknownProvider as a match.
func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}

// ParseProviders parses a list of provider names, collecting every unknown name.
func ParseProviders(names []string) ([]Provider, error) {
	var out []Provider
	var errs []error
	for _, name := range names {
		p, err := ParseProvider(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
