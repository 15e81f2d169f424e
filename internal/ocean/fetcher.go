package ocean

import (
	"context"
	"errors"
	"fmt"
)

// Fetcher abstracts one upstream ocean-data source. Implementations run a
// single bounded-time attempt; no retries.
type Fetcher interface {
	Source() Source
	Fetch(ctx context.Context, loc Location) (*Snapshot, error)
}

// ErrMissingAPIKey signals a configuration problem (required secret absent),
// surfaced to single-source callers as HTTP 500 with a help hint.
var ErrMissingAPIKey = errors.New("required api key is not configured")

// ConfigError wraps ErrMissingAPIKey with the env var the operator must set.
type ConfigError struct {
	Source Source
	EnvVar string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s missing in environment", e.Source, e.EnvVar)
}

func (e *ConfigError) Unwrap() error { return ErrMissingAPIKey }

// ScriptError signals a failure of the subprocess-backed CMEMS fetcher:
// non-zero exit, hard-kill timeout, or malformed stdout.
type ScriptError struct {
	Reason string
	Stderr string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ocean model script: %s: %s", e.Reason, e.Stderr)
	}
	return fmt.Sprintf("ocean model script: %s", e.Reason)
}

func (e *ScriptError) Unwrap() error { return e.Err }
