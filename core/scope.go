package core

import (
	"errors"
	"fmt"
)

// nullField stands in for an absent scope field when building storage keys,
// so that {app, "", ""} and {app} produce the same key.
const nullField = "null"

// Scope identifies whose memory is being read or written. At least one
// field must be set; an empty field widens the scope across that dimension.
type Scope struct {
	ApplicationID string `json:"application_id,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
}

// ErrEmptyScope is returned when all scope fields are empty.
var ErrEmptyScope = errors.New("scope requires at least one of application, agent, or user ID")

// Validate checks that the scope identifies at least one dimension.
// ThreadID alone is not enough: it only narrows an already-scoped store.
func (s Scope) Validate() error {
	if s.ApplicationID == "" && s.AgentID == "" && s.UserID == "" {
		return ErrEmptyScope
	}
	return nil
}

// Key returns the composite storage key for this scope. Absent fields are
// replaced with a sentinel so keys are stable and comparable.
func (s Scope) Key() string {
	return fmt.Sprintf("%s|%s|%s", orNull(s.ApplicationID), orNull(s.AgentID), orNull(s.UserID))
}

// Equal reports whether two scopes address the same memory partition.
func (s Scope) Equal(other Scope) bool {
	return s.Key() == other.Key()
}

func orNull(s string) string {
	if s == "" {
		return nullField
	}
	return s
}
