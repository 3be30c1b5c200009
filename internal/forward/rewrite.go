package forward

import (
	"strings"

	"github.com/shineum/ses-forwarder-lite/internal/email"
	"github.com/shineum/ses-forwarder-lite/internal/parser"
)

// DefaultVerifiedFromPrefix is the local-part used for the verified sender
// when none is configured.
const DefaultVerifiedFromPrefix = "noreply"

// strippedOnce are removed before the first send. Signatures and the
// envelope sender are invalid once the message is modified.
var strippedOnce = []string{"DKIM-Signature", "Sender"}

// strippedPerRecipient are replaced before every send.
var strippedPerRecipient = []string{"From", "Return-Path", "Reply-To"}

// Rewriter prepares a received message for re-sending from a verified
// sender address while keeping replies directed at the original sender.
type Rewriter struct {
	msg *email.Message

	originalFrom string
	replyTo      string
	returnPath   string
	fromName     string
}

// NewRewriter captures the original addressing headers of msg and strips
// the headers that cannot survive modification. msg is mutated.
func NewRewriter(msg *email.Message) *Rewriter {
	r := &Rewriter{msg: msg}

	r.originalFrom = msg.Header.Get("From")

	r.replyTo = msg.Header.Get("Reply-To")
	if r.replyTo == "" {
		r.replyTo = r.originalFrom
	}

	r.returnPath = msg.Header.Get("Return-Path")
	if r.returnPath == "" {
		r.returnPath = r.replyTo
	}

	// Without a display name, show the original address so the recipient
	// can still tell who wrote.
	name, addr := parser.ParseAddress(r.originalFrom)
	if name == "" {
		name = addr
	}
	r.fromName = name

	for _, k := range strippedOnce {
		msg.Header.Del(k)
	}

	return r
}

// Rewrite sets From to the original sender's name at verifiedFrom and
// Reply-To to the captured reply address, replacing any previous values.
func (r *Rewriter) Rewrite(verifiedFrom string) {
	for _, k := range strippedPerRecipient {
		r.msg.Header.Del(k)
	}

	r.msg.Header.Set("From", parser.FormatAddress(r.fromName, verifiedFrom))
	if r.replyTo != "" {
		r.msg.Header.Set("Reply-To", r.replyTo)
	}
}

// OriginalFrom returns the From header value as received.
func (r *Rewriter) OriginalFrom() string {
	return r.originalFrom
}

// ReplyTo returns the captured Reply-To, defaulted to the original From.
func (r *Rewriter) ReplyTo() string {
	return r.replyTo
}

// ReturnPath returns the captured Return-Path, defaulted to ReplyTo.
func (r *Rewriter) ReturnPath() string {
	return r.returnPath
}

// VerifiedSender returns the address to send from for recipient. A configured
// value containing "@" is used as-is; otherwise it is taken as a local-part
// (DefaultVerifiedFromPrefix when empty) at the recipient's domain.
func VerifiedSender(configured, recipient string) string {
	if configured == "" {
		configured = DefaultVerifiedFromPrefix
	}
	if strings.Contains(configured, "@") {
		return configured
	}
	return configured + "@" + parser.Domain(recipient)
}
