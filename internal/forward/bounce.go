package forward

import (
	"context"
	"fmt"

	"github.com/shineum/ses-forwarder-lite/internal/email"
	"github.com/shineum/ses-forwarder-lite/internal/parser"
)

const (
	bounceSenderName = "Mail Delivery Subsystem"
	bounceSubject    = "Undeliverable: Auto-Reply"
)

// NewBounce builds the notice sent to returnPath when forwarding for
// recipient failed with cause. Any display name in returnPath is dropped.
// It returns nil if returnPath holds no usable address.
func NewBounce(returnPath, recipient, verifiedFrom string, cause error) *email.Bounce {
	_, to := parser.ParseAddress(returnPath)
	if to == "" {
		return nil
	}

	body := fmt.Sprintf("An error occurred while forwarding email for %s to its final destination address. "+
		"Check that the size of the email and its attachments are not too large or contact the administrator for assistance. \n"+
		"\n"+
		"The error message was: %v", recipient, cause)

	return &email.Bounce{
		From:     parser.FormatAddress(bounceSenderName, verifiedFrom),
		To:       []string{to},
		Cc:       []string{recipient},
		Subject:  bounceSubject,
		TextBody: body,
	}
}

// bounce sends a bounce notice. Failures are logged, never retried.
func (f *Forwarder) bounce(ctx context.Context, returnPath, recipient, verifiedFrom string, cause error) {
	b := NewBounce(returnPath, recipient, verifiedFrom, cause)
	if b == nil {
		f.logger.Warn("no return path address, bounce not sent",
			"recipient", recipient,
			"return_path", returnPath,
		)
		return
	}

	id, err := f.provider.SendBounce(ctx, b)
	if err != nil {
		f.logger.Error("error while sending bounce email",
			"to", b.To[0],
			"error", err,
		)
		return
	}

	f.logger.Info("sent bounce email",
		"to", b.To[0],
		"recipient", recipient,
		"ses_message_id", id,
	)
}
