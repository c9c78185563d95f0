package domain

import "time"

// Event names emitted by the engine
const (
	EventCatalogChanged       = "license.catalog_changed"
	EventCommerceSynchronized = "commerce.synchronized"
	EventCertificateIssued    = "certificate.issued"
)

// Event is a fire-and-forget notification for collaborators
type Event struct {
	Name       string         `json:"name"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(name, key string, payload map[string]any) Event {
	return Event{
		Name:       name,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
