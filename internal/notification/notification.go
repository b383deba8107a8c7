// Package notification carries outbound mail from the services to the
// delivery worker. Services only enqueue; failures are logged and never
// undo the operation that produced the message.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind selects the template a message is rendered with.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindOrgInvite     Kind = "org_invite"
	KindWebsiteInvite Kind = "website_invite"
)

// Message is one outbound notification.
type Message struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	Token     string            `json:"token"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage returns a Message with a fresh ID and timestamp.
func NewMessage(kind Kind, recipient, token string, meta map[string]string) Message {
	return Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		Recipient: recipient,
		Token:     token,
		Context:   meta,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier accepts a message for delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }
