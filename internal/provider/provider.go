// Package provider defines the interface for outbound mail backends.
package provider

import (
	"context"

	"github.com/shineum/ses-forwarder-lite/internal/email"
)

// Provider is the interface that outbound mail backends must implement.
type Provider interface {
	// SendRaw delivers a complete RFC 5322 message to the given
	// destinations, ignoring any To/Cc headers inside it. It returns the
	// backend's message id.
	SendRaw(ctx context.Context, destinations []string, raw []byte) (string, error)

	// SendBounce delivers a plain-text bounce notice.
	SendBounce(ctx context.Context, b *email.Bounce) (string, error)

	// Name returns the human-readable name of this provider.
	Name() string
}
