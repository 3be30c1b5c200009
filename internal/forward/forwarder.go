// Package forward rewrites received messages and re-sends them to their
// mapped destinations, answering failed deliveries with a bounce notice.
package forward

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shineum/ses-forwarder-lite/internal/email"
	"github.com/shineum/ses-forwarder-lite/internal/mapping"
	"github.com/shineum/ses-forwarder-lite/internal/parser"
	"github.com/shineum/ses-forwarder-lite/internal/provider"
)

// Config holds the settings for a Forwarder.
type Config struct {
	Provider provider.Provider
	Mapping  mapping.Mapping
	// VerifiedFrom is a full verified address or a local-part to combine
	// with each recipient's domain. Empty means DefaultVerifiedFromPrefix.
	VerifiedFrom string
	Logger       *slog.Logger
}

// Forwarder dispatches one received message to every mapped recipient.
type Forwarder struct {
	provider     provider.Provider
	mapping      mapping.Mapping
	verifiedFrom string
	logger       *slog.Logger
}

// Delivery records one successful forward.
type Delivery struct {
	Recipient string
	ForwardTo string
	MessageID string
}

// Result summarizes what happened to each recipient of a message.
type Result struct {
	Forwarded []Delivery
	// Bounced lists recipients whose forward failed.
	Bounced []string
	// Unmatched lists recipients with no mapping entry.
	Unmatched []string
}

// Matched reports whether at least one recipient had a mapping entry.
func (r Result) Matched() bool {
	return len(r.Forwarded)+len(r.Bounced) > 0
}

// New creates a Forwarder.
func New(cfg Config) *Forwarder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		provider:     cfg.Provider,
		mapping:      cfg.Mapping,
		verifiedFrom: cfg.VerifiedFrom,
		logger:       logger,
	}
}

// Forward rewrites msg and sends it to the destination of each recipient, in
// order. A failed send is answered with a bounce and does not stop the
// remaining recipients. Forward never returns an error; the outcome is
// reported in the Result and the log. msg is mutated.
func (f *Forwarder) Forward(ctx context.Context, msg *email.Message, recipients []string) Result {
	var res Result
	rw := NewRewriter(msg)
	_, sender := parser.ParseAddress(rw.OriginalFrom())

	for _, original := range recipients {
		verifiedFrom := VerifiedSender(f.verifiedFrom, original)
		rw.Rewrite(verifiedFrom)

		recipient := strings.ToLower(original)
		forwardTo, ok := f.mapping.Resolve(recipient)
		if !ok {
			f.logger.Debug("recipient not in forwarding map", "recipient", recipient)
			res.Unmatched = append(res.Unmatched, recipient)
			continue
		}

		id, err := f.send(ctx, msg, forwardTo)
		if err != nil {
			f.logger.Info("error while forwarding email",
				"recipient", recipient,
				"forward_to", forwardTo,
				"error", err,
			)
			f.bounce(ctx, rw.ReturnPath(), recipient, verifiedFrom, err)
			res.Bounced = append(res.Bounced, recipient)
			continue
		}

		f.logger.Info("forwarded email",
			"from", sender,
			"recipient", recipient,
			"forward_to", forwardTo,
			"ses_message_id", id,
		)
		res.Forwarded = append(res.Forwarded, Delivery{
			Recipient: recipient,
			ForwardTo: forwardTo,
			MessageID: id,
		})
	}

	if !res.Matched() {
		f.logger.Error("check SES rule set; no recipient found in forwarding map",
			"message_id", msg.MessageID(),
			"subject", msg.Subject(),
			"from", sender,
			"recipients", recipients,
		)
	}

	return res
}

func (f *Forwarder) send(ctx context.Context, msg *email.Message, forwardTo string) (string, error) {
	raw, err := msg.Bytes()
	if err != nil {
		return "", err
	}
	return f.provider.SendRaw(ctx, []string{forwardTo}, raw)
}
