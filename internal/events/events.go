package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies which lifecycle transition an Event describes
type Type string

// Event types published by the loader
const (
	TypeSubmitted    Type = "submitted"
	TypeCoalesced    Type = "coalesced"
	TypePromoted     Type = "promoted"
	TypeCancelled    Type = "cancelled"
	TypeDecoded      Type = "decoded"
	TypeDecodeFailed Type = "decode_failed"
	TypeDelivered    Type = "delivered"
	TypeDropped      Type = "dropped"
)

// Event is a single lifecycle transition of one image in the loader.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates which transition happened
	Type Type `json:"type"`

	// Key is the identity of the image concerned
	Key string `json:"key"`

	// Tag is the caller-supplied tag of the work item
	Tag int `json:"tag"`

	// Payload carries type-specific details serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event of the given type. A nil payload is omitted.
func NewEvent(eventType Type, key string, tag int, payload interface{}) (*Event, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Key:       key,
		Tag:       tag,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
