// Package parser reads raw RFC 5322 messages into the forwarder's message model
// and extracts addresses from header values.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	// Register decoders for non-UTF-8 charsets used in encoded display names.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/shineum/ses-forwarder-lite/internal/email"
)

// angleAddr matches an <addr-spec> in a header value that failed
// strict parsing.
var angleAddr = regexp.MustCompile(`<([^<>\s]+@[^<>\s]+)>`)

// Parse splits a raw message into its header fields and body. The body is
// not decoded; it is carried as-is so it can be re-sent unchanged.
func Parse(raw []byte) (*email.Message, error) {
	br := bufio.NewReader(bytes.NewReader(raw))

	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message header: %w", err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return &email.Message{
		Header: mail.Header{Header: message.Header{Header: h}},
		Body:   body,
	}, nil
}

// ParseAddress splits a single address header value into display name and
// bare address. It never fails: values that are not valid RFC 5322 addresses
// are salvaged where possible, otherwise empty strings are returned.
func ParseAddress(raw string) (name, addr string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if a, err := mail.ParseAddress(raw); err == nil {
		return a.Name, a.Address
	}

	// Some senders emit unquoted specials in the display name; keep the
	// address and whatever precedes it.
	if m := angleAddr.FindStringSubmatchIndex(raw); m != nil {
		addr = raw[m[2]:m[3]]
		name = strings.Trim(strings.TrimSpace(raw[:m[0]]), `"`)
		return name, addr
	}

	if strings.Count(raw, "@") == 1 && !strings.ContainsAny(raw, " \t<>") {
		return "", raw
	}

	return "", ""
}

// FormatAddress renders a display name and address as a header value,
// encoding non-ASCII names per RFC 2047.
func FormatAddress(name, addr string) string {
	a := &mail.Address{Name: name, Address: addr}
	return a.String()
}

// Domain returns the part of addr after the last "@", or an empty string.
func Domain(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	return addr[i+1:]
}
