// Package audit records identity lifecycle operations in a tamper-evident
// append-only log. Audit entries are separate from technical logs: they are
// hash-chained so that insertion, removal or mutation of any entry is
// detectable, and they never carry secrets.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType categorizes an audited lifecycle operation.
type EventType string

const (
	// EventCACreated records initialization of a new certificate authority.
	EventCACreated EventType = "ca_created"

	// EventCALoaded records a server start against an existing authority.
	EventCALoaded EventType = "ca_loaded"

	// EventCertIssued records a successful certificate issuance.
	EventCertIssued EventType = "cert_issued"

	// EventEnrollRejected records a refused enrollment request.
	EventEnrollRejected EventType = "enroll_rejected"
)

// Outcome is the result of the audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is a single audit entry. PrevHash and Hash are set by the log on
// append; callers fill the remaining fields.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Host      string    `json:"host,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Serial    string    `json:"serial,omitempty"`
	Role      string    `json:"role,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	PrevHash  string    `json:"prevHash"`
	Hash      string    `json:"hash"`
}

// NewEvent creates an event stamped with the current UTC time and hostname.
func NewEvent(eventType EventType, outcome Outcome) *Event {
	hostname, _ := os.Hostname()
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Host:      hostname,
		Outcome:   outcome,
	}
}

// Validate checks that the fields every entry must carry are present.
func (e *Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Outcome == "" {
		return fmt.Errorf("outcome is required")
	}
	return nil
}

// canonicalJSON serializes the event without its own hash, for hashing.
func (e *Event) canonicalJSON() ([]byte, error) {
	type chained struct {
		Type      EventType `json:"type"`
		Timestamp string    `json:"timestamp"`
		Host      string    `json:"host,omitempty"`
		DeviceID  string    `json:"deviceId,omitempty"`
		Subject   string    `json:"subject,omitempty"`
		Serial    string    `json:"serial,omitempty"`
		Role      string    `json:"role,omitempty"`
		Reason    string    `json:"reason,omitempty"`
		Outcome   Outcome   `json:"outcome"`
		PrevHash  string    `json:"prevHash"`
	}

	return json.Marshal(chained{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Host:      e.Host,
		DeviceID:  e.DeviceID,
		Subject:   e.Subject,
		Serial:    e.Serial,
		Role:      e.Role,
		Reason:    e.Reason,
		Outcome:   e.Outcome,
		PrevHash:  e.PrevHash,
	})
}

// Log is the sink audit entries are appended to.
//
// Implementations must refuse to drop entries silently: a failed append is
// an error the audited operation must surface, and entries must be durable
// before Append returns.
type Log interface {
	// Append chains and persists one event.
	Append(event *Event) error

	// Close flushes pending entries and releases the log.
	Close() error

	// LastHash returns the hash of the most recent entry, or the genesis
	// marker when the log is empty.
	LastHash() string
}

// NopLog discards all events. Used where audit logging is disabled, such
// as client-side tooling.
type NopLog struct{}

var _ Log = (*NopLog)(nil)

func (NopLog) Append(*Event) error { return nil }
func (NopLog) Close() error        { return nil }
func (NopLog) LastHash() string    { return GenesisHash }
