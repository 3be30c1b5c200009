// Package email defines the message data model used throughout the forwarder.
package email

import (
	"bytes"
	"fmt"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Message is a received email. Header fields keep their original order and
// may repeat; the body is kept verbatim so MIME structure and signatures of
// the parts are forwarded untouched.
type Message struct {
	Header mail.Header
	Body   []byte
}

// Bytes serializes the message as a CRLF header block, a blank line and the
// original body.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, m.Header.Header.Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	buf.Write(m.Body)
	return buf.Bytes(), nil
}

// MessageID returns the Message-Id header value, or an empty string.
func (m *Message) MessageID() string {
	return m.Header.Get("Message-Id")
}

// Subject returns the decoded Subject header, falling back to the raw value
// if it cannot be decoded.
func (m *Message) Subject() string {
	subject, err := m.Header.Subject()
	if err != nil {
		return m.Header.Get("Subject")
	}
	return subject
}

// Bounce is a plain-text delivery failure notice.
type Bounce struct {
	From     string
	To       []string
	Cc       []string
	Subject  string
	TextBody string
}
