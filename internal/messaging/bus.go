// Package messaging routes action messages to their handlers, in-process
// and over a local HTTP endpoint.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"prismakit/internal/logging"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrUnknownAction is wrapped by Dispatch for actions nobody registered.
var ErrUnknownAction = errors.New("unknown action")

// Message asks for one action to be performed.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UnmarshalJSON accepts the payload either nested under "payload" or, when
// that key is absent, as the message's other top-level fields:
//
//	{"action":"performDNumberSearch","payload":{"dNumber":"D12345678"}}
//	{"action":"performDNumberSearch","dNumber":"D12345678"}
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = Message{}
	if raw, ok := fields["action"]; ok {
		if err := json.Unmarshal(raw, &m.Action); err != nil {
			return fmt.Errorf("action: %w", err)
		}
		delete(fields, "action")
	}
	if raw, ok := fields["payload"]; ok {
		m.Payload = raw
		return nil
	}
	if len(fields) == 0 {
		return nil
	}
	flat, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	m.Payload = flat
	return nil
}

// Response is the reply to a Message.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// OK reports whether the action succeeded.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// Handler performs one action.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Bind adapts a handler taking a typed payload. An empty payload decodes as
// the zero value.
func Bind[T any](fn func(ctx context.Context, in T) (any, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in T
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		return fn(ctx, in)
	}
}

// Bus maps action names to handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Register adds a handler for action. Registering an action twice is an
// error.
func (b *Bus) Register(action string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[action]; dup {
		return fmt.Errorf("action %q already registered", action)
	}
	b.handlers[action] = h
	return nil
}

// Actions lists the registered action names, sorted.
func (b *Bus) Actions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for a := range b.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Call runs the handler for msg and returns its result.
func (b *Bus) Call(ctx context.Context, msg Message) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[msg.Action]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
	return h(ctx, msg.Payload)
}

// Dispatch runs msg and wraps the outcome in a Response.
func (b *Bus) Dispatch(ctx context.Context, msg Message) Response {
	data, err := b.Call(ctx, msg)
	if err != nil {
		logging.MessagingWarn("Action %s failed: %v", msg.Action, err)
		return Response{Status: StatusError, Error: err.Error()}
	}
	logging.Messaging("Action %s succeeded", msg.Action)
	return Response{Status: StatusSuccess, Data: data}
}
