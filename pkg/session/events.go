package session

import "github.com/rupeshbug/sec-policy-lens/pkg/versions"

type EventType string

const (
	EventTurnAppended         EventType = "turn-appended"
	EventPendingChanged       EventType = "pending-changed"
	EventVersionFilterChanged EventType = "version-filter-changed"
	EventDraftChanged         EventType = "draft-changed"
)

// Event describes a single state change. Pending, VersionFilter, Draft and
// TranscriptLen always reflect the state right after the change.
type Event struct {
	Type          EventType        `json:"type"`
	Turn          *Turn            `json:"turn,omitempty"`
	Pending       bool             `json:"pending"`
	VersionFilter versions.Version `json:"version_filter,omitempty"`
	Draft         string           `json:"draft,omitempty"`
	TranscriptLen int              `json:"transcript_len"`
}

// Listener observes session changes. It is called synchronously, outside the
// controller lock, in the order the changes happened.
type Listener func(Event)
