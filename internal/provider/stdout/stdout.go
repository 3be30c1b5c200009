// Package stdout implements a Provider that prints outbound mail instead of
// sending it. It is used for dry runs and local testing.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/ses-forwarder-lite/internal/email"
)

const separator = "========================================\n"

// Provider prints messages to a writer in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// SendRaw prints the destinations followed by the raw message.
func (p *Provider) SendRaw(_ context.Context, destinations []string, raw []byte) (string, error) {
	id := newMessageID()

	var b strings.Builder
	b.WriteString(separator)
	b.WriteString(fmt.Sprintf("Message-Id: %s\n", id))
	b.WriteString(fmt.Sprintf("Destinations: %s\n", strings.Join(destinations, ", ")))
	b.WriteString(fmt.Sprintf("Size: %s\n", formatSize(len(raw))))
	b.WriteString("\n")
	b.Write(raw)
	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	return id, nil
}

// SendBounce prints the bounce notice.
func (p *Provider) SendBounce(_ context.Context, msg *email.Bounce) (string, error) {
	id := newMessageID()

	var b strings.Builder
	b.WriteString(separator)
	b.WriteString(fmt.Sprintf("Message-Id: %s\n", id))
	b.WriteString(fmt.Sprintf("From: %s\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\n", strings.Join(msg.Cc, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))
	b.WriteString("Body:\n")
	b.WriteString(msg.TextBody + "\n")
	b.WriteString(separator)

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return "", fmt.Errorf("failed to write bounce: %w", err)
	}
	return id, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func newMessageID() string {
	return "stdout-" + uuid.NewString()
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
