package event

import "time"

// Wildcard is the event type that matches every published message.
const Wildcard = "*"

// Message is a single published event.
type Message struct {
	// Type identifies the event. Convention: "category.action" (e.g. "unit.selected").
	Type string
	// Payload is the event body. The bus never inspects it.
	Payload any
	// Target, when set, restricts delivery to subscribers registered with a
	// matching scope.
	Target string
	// Source is the id of the emitting component, if any.
	Source string
	// Timestamp is when the message was published.
	Timestamp time.Time
}

// EventType returns the message type.
func (m Message) EventType() string { return m.Type }

// Targeted reports whether the message is addressed to a specific scope.
func (m Message) Targeted() bool { return m.Target != "" }

// NewMessage creates a Message stamped with the current time.
func NewMessage(eventType string, payload any, target, source string) Message {
	return Message{
		Type:      eventType,
		Payload:   payload,
		Target:    target,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// Handler is a function that handles a message.
type Handler func(Message)

// Unsubscribe removes the subscription it was returned for. Calling it more
// than once is a no-op.
type Unsubscribe func()

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscription)

// InScope registers the subscription under scope. Targeted messages are only
// delivered to subscriptions whose scope equals the target.
func InScope(scope string) SubscribeOption {
	return func(s *subscription) { s.scope = scope }
}

// OwnedBy records the component that owns the subscription, so that
// subscriptions left behind after its deactivation can be detected.
func OwnedBy(componentID string) SubscribeOption {
	return func(s *subscription) { s.owner = componentID }
}
