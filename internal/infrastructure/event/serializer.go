package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope carries one serialized domain event across a process boundary
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// EventSerializer turns registered domain events into envelopes and back
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register binds an event type name to the Go type used to decode it
func (s *EventSerializer) Register(eventType string, sample shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Marshal wraps the event in an envelope. Only registered types are accepted
// so a worker on the other side can always decode what was sent.
func (s *EventSerializer) Marshal(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return json.Marshal(Envelope{
		EventID:   event.EventID(),
		EventType: event.EventType(),
		Payload:   payload,
	})
}

// Unmarshal decodes an envelope produced by Marshal
func (s *EventSerializer) Unmarshal(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}
	if event.EventID() != env.EventID {
		return nil, fmt.Errorf("envelope id %s does not match event id %s", env.EventID, event.EventID())
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	return types
}
