package configuration

import (
	"errors"
	"fmt"
)

// ErrUnknownParent is wrapped when a package extends a name nobody loaded.
var ErrUnknownParent = errors.New("unknown parent package")

// ConfigurationError reports a failed fold.  The manager is left unbuilt
// when one is returned, so the next Configuration() call retries.
type ConfigurationError struct {
	Provider string // empty when the failure is not tied to one provider
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return "configuration: unable to load configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration: provider %s: %v", e.Provider, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProviderTeardownError is logged, never returned, when a provider's
// Destroy fails during clear or reload.
type ProviderTeardownError struct {
	Provider string
	Err      error
}

func (e *ProviderTeardownError) Error() string {
	return fmt.Sprintf("configuration: destroy %s: %v", e.Provider, e.Err)
}

func (e *ProviderTeardownError) Unwrap() error { return e.Err }
