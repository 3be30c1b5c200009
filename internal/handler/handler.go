// Package handler processes SES receipt events delivered to Lambda.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/shineum/ses-forwarder-lite/internal/forward"
	"github.com/shineum/ses-forwarder-lite/internal/parser"
	"github.com/shineum/ses-forwarder-lite/internal/storage"
)

// EventSourceSES is the eventSource of SES receipt records.
const EventSourceSES = "aws:ses"

var (
	// ErrUnexpectedSource is returned for records not produced by SES.
	ErrUnexpectedSource = errors.New("unexpected event source")
	// ErrMissingMessageID is returned for records without a message id.
	ErrMissingMessageID = errors.New("event record has no message id")
)

// Handler fetches each received message from storage and forwards it.
type Handler struct {
	Store     storage.Store
	Forwarder *forward.Forwarder
	// KeyPrefix is joined with the SES message id to form the object key.
	KeyPrefix string
	Logger    *slog.Logger
}

// HandleEvent is the Lambda entry point. It returns an error only for
// malformed events and for messages that cannot be fetched or parsed;
// delivery failures are bounced and logged by the Forwarder.
func (h *Handler) HandleEvent(ctx context.Context, event events.SimpleEmailEvent) error {
	logger := h.logger(ctx)

	for i := range event.Records {
		if err := h.handleRecord(ctx, logger, &event.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleRecord(ctx context.Context, logger *slog.Logger, record *events.SimpleEmailRecord) error {
	if record.EventSource != EventSourceSES {
		return fmt.Errorf("%w: %q", ErrUnexpectedSource, record.EventSource)
	}

	messageID := record.SES.Mail.MessageID
	if messageID == "" {
		return ErrMissingMessageID
	}

	key := path.Join(h.KeyPrefix, messageID)
	logger.Debug("fetching message", "key", key, "source", record.SES.Mail.Source)

	raw, err := h.Store.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse message %s: %w", messageID, err)
	}

	res := h.Forwarder.Forward(ctx, msg, record.SES.Receipt.Recipients)

	logger.Info("processed message",
		"ses_message_id", messageID,
		"forwarded", len(res.Forwarded),
		"bounced", len(res.Bounced),
		"unmatched", len(res.Unmatched),
	)
	return nil
}

func (h *Handler) logger(ctx context.Context) *slog.Logger {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
	}
	return logger
}
