package models

import (
	"errors"
	"fmt"
)

// ErrUnavailable means a provider could not supply a signal. Scoring degrades
// to the neutral paths instead of failing the prediction.
var ErrUnavailable = errors.New("data unavailable")

// ErrNotFound means a raw symbol could not be resolved to a known asset.
var ErrNotFound = errors.New("asset not found")

// ValidationError marks a malformed input record. The record is excluded from
// ranking with the reason recorded; the batch continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigError marks an invalid weight or threshold configuration. Fatal: the
// run aborts before any scoring happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
