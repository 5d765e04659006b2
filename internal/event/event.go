package event

type Type string

const (
	TypeSessionChanged   Type = "session.changed"
	TypeCacheUpdated     Type = "cache.updated"
	TypeCacheInvalidated Type = "cache.invalidated"
	TypeCacheSnapshot    Type = "cache.snapshot"
	TypeAlert            Type = "alert"
)

// Event is scoped to one workspace; subscribers only forward events of the
// workspace they serve.
type Event struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Payload     any    `json:"payload"`
	Timestamp   string `json:"timestamp"`
	WorkspaceID string `json:"-"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

// Alert is the payload of TypeAlert: a dismissible message for the visitor.
type Alert struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
