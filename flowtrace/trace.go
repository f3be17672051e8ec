// Package flowtrace carries the per-session correlation record threading
// together the steps of one OAuth2 authorization journey. A Trace is populated
// incrementally across redirects within one browser session; audit events take
// a read-only Snapshot at each publication point so that a single end-to-end
// journey can be reconstructed from log lines alone.
package flowtrace

import "time"

// Trace is the mutable per-session record. It is session-scoped state and is
// never shared across concurrent requests, so it carries no locking.
type Trace struct {
	AuthUUID string
	ClientID string
	AppID    string
	AppName  string
	StartAt  time.Time
	markers  map[string]string
}

// New creates a Trace keyed by the flow's correlation uuid.
func New(authUUID string) *Trace {
	return &Trace{
		AuthUUID: authUUID,
		StartAt:  time.Now().UTC(),
		markers:  make(map[string]string),
	}
}

// Mark records a named step marker collected during the OAuth dance.
func (t *Trace) Mark(step, value string) {
	if t.markers == nil {
		t.markers = make(map[string]string)
	}
	t.markers[step] = value
}

// Snapshot returns an immutable copy of the trace for attachment to audit
// events and outbound requests.
func (t *Trace) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	markers := make(map[string]string, len(t.markers))
	for k, v := range t.markers {
		markers[k] = v
	}
	return Snapshot{
		AuthUUID: t.AuthUUID,
		ClientID: t.ClientID,
		AppID:    t.AppID,
		AppName:  t.AppName,
		StartAt:  t.StartAt,
		Markers:  markers,
	}
}

// Snapshot is a read-only view of a Trace taken at one audit point.
type Snapshot struct {
	AuthUUID string            `json:"auth_uuid,omitempty"`
	ClientID string            `json:"auth_client_id,omitempty"`
	AppID    string            `json:"auth_app_id,omitempty"`
	AppName  string            `json:"auth_app_name,omitempty"`
	StartAt  time.Time         `json:"auth_start,omitzero"`
	Markers  map[string]string `json:"auth_markers,omitempty"`
}

// IsZero reports whether the snapshot carries no correlation data.
func (s Snapshot) IsZero() bool {
	return s.AuthUUID == "" && s.ClientID == "" && s.AppID == "" && len(s.Markers) == 0
}
