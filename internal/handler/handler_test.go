package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/shineum/ses-forwarder-lite/internal/email"
	"github.com/shineum/ses-forwarder-lite/internal/forward"
	"github.com/shineum/ses-forwarder-lite/internal/mapping"
	"github.com/shineum/ses-forwarder-lite/internal/storage"
)

const rawMessage = "Return-Path: <alice@x.com>\r\n" +
	"DKIM-Signature: v=1; d=x.com; b=abc\r\n" +
	"From: \"Alice\" <alice@x.com>\r\n" +
	"To: chris@example.org, dana@example.org\r\n" +
	"Subject: Hello\r\n" +
	"Message-Id: <m1@x.com>\r\n" +
	"\r\n" +
	"Body text\r\n"

// memStore serves messages from memory and records requested keys.
type memStore struct {
	objects map[string]string
	keys    []string
}

func (s *memStore) Fetch(_ context.Context, key string) ([]byte, error) {
	s.keys = append(s.keys, key)
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return []byte(data), nil
}

type recordingProvider struct {
	failFor map[string]bool
	sent    []string
	bounces []*email.Bounce
}

func (p *recordingProvider) SendRaw(_ context.Context, destinations []string, raw []byte) (string, error) {
	if p.failFor[destinations[0]] {
		return "", errors.New("MessageRejected")
	}
	p.sent = append(p.sent, destinations[0])
	return "ses-1", nil
}

func (p *recordingProvider) SendBounce(_ context.Context, b *email.Bounce) (string, error) {
	p.bounces = append(p.bounces, b)
	return "ses-2", nil
}

func (p *recordingProvider) Name() string { return "recording" }

func sesEvent(t *testing.T, source, messageID string, recipients ...string) events.SimpleEmailEvent {
	t.Helper()
	doc := map[string]any{
		"Records": []any{
			map[string]any{
				"eventSource":  source,
				"eventVersion": "1.0",
				"ses": map[string]any{
					"mail": map[string]any{
						"messageId":   messageID,
						"source":      "alice@x.com",
						"destination": recipients,
					},
					"receipt": map[string]any{
						"recipients": recipients,
					},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var event events.SimpleEmailEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event
}

func newHandler(t *testing.T, store storage.Store, prov *recordingProvider, logs *bytes.Buffer) *Handler {
	t.Helper()
	m, err := mapping.New(map[string]string{
		"chris": "chris@dest.org",
		"dana":  "dana@dest.org",
	})
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	return &Handler{
		Store:     store,
		KeyPrefix: "inbox",
		Logger:    logger,
		Forwarder: forward.New(forward.Config{
			Provider: prov,
			Mapping:  m,
			Logger:   logger,
		}),
	}
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()

	store := &memStore{objects: map[string]string{"inbox/abc123": rawMessage}}
	prov := &recordingProvider{}
	var logs bytes.Buffer
	h := newHandler(t, store, prov, &logs)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-42"})
	event := sesEvent(t, "aws:ses", "abc123", "chris@example.org", "dana+list@example.org")

	if err := h.HandleEvent(ctx, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.keys) != 1 || store.keys[0] != "inbox/abc123" {
		t.Errorf("fetched keys: got %v, want [inbox/abc123]", store.keys)
	}
	if len(prov.sent) != 2 || prov.sent[0] != "chris@dest.org" || prov.sent[1] != "dana@dest.org" {
		t.Errorf("sent: got %v", prov.sent)
	}
	if !strings.Contains(logs.String(), `"request_id":"req-42"`) {
		t.Errorf("logs should carry the request id: %s", logs.String())
	}
}

func TestHandleEvent_SendFailureDoesNotFailInvocation(t *testing.T) {
	t.Parallel()

	store := &memStore{objects: map[string]string{"inbox/abc123": rawMessage}}
	prov := &recordingProvider{failFor: map[string]bool{"chris@dest.org": true}}
	var logs bytes.Buffer
	h := newHandler(t, store, prov, &logs)

	event := sesEvent(t, "aws:ses", "abc123", "chris@example.org", "dana@example.org")
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prov.sent) != 1 || prov.sent[0] != "dana@dest.org" {
		t.Errorf("sent: got %v, want [dana@dest.org]", prov.sent)
	}
	if len(prov.bounces) != 1 || prov.bounces[0].To[0] != "alice@x.com" {
		t.Errorf("bounces: got %+v, want one to alice@x.com", prov.bounces)
	}
}

func TestHandleEvent_NoRecipientFound(t *testing.T) {
	t.Parallel()

	store := &memStore{objects: map[string]string{"inbox/abc123": rawMessage}}
	prov := &recordingProvider{}
	var logs bytes.Buffer
	h := newHandler(t, store, prov, &logs)

	event := sesEvent(t, "aws:ses", "abc123", "nobody@example.org")
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prov.sent) != 0 {
		t.Errorf("sent: got %v, want none", prov.sent)
	}
	if !strings.Contains(logs.String(), "no recipient found") {
		t.Errorf("expected no-recipient error log, got %s", logs.String())
	}
}

func TestHandleEvent_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		objects map[string]string
		event   func(t *testing.T) events.SimpleEmailEvent
		wantErr error
	}{
		{
			name:    "unexpected source",
			objects: map[string]string{"inbox/abc123": rawMessage},
			event: func(t *testing.T) events.SimpleEmailEvent {
				return sesEvent(t, "aws:s3", "abc123", "chris@example.org")
			},
			wantErr: ErrUnexpectedSource,
		},
		{
			name:    "missing message id",
			objects: map[string]string{},
			event: func(t *testing.T) events.SimpleEmailEvent {
				return sesEvent(t, "aws:ses", "", "chris@example.org")
			},
			wantErr: ErrMissingMessageID,
		},
		{
			name:    "object not found",
			objects: map[string]string{},
			event: func(t *testing.T) events.SimpleEmailEvent {
				return sesEvent(t, "aws:ses", "abc123", "chris@example.org")
			},
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prov := &recordingProvider{}
			h := newHandler(t, &memStore{objects: tt.objects}, prov, &bytes.Buffer{})

			err := h.HandleEvent(context.Background(), tt.event(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if len(prov.sent) != 0 {
				t.Errorf("nothing should be sent, got %v", prov.sent)
			}
		})
	}
}

func TestHandleEvent_UnparseableMessage(t *testing.T) {
	t.Parallel()

	store := &memStore{objects: map[string]string{"inbox/abc123": "no colon here\r\n\r\n"}}
	h := newHandler(t, store, &recordingProvider{}, &bytes.Buffer{})

	err := h.HandleEvent(context.Background(), sesEvent(t, "aws:ses", "abc123", "chris@example.org"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse message abc123") {
		t.Errorf("got %v, want parse error", err)
	}
}

func TestHandleEvent_EmptyPrefix(t *testing.T) {
	t.Parallel()

	store := &memStore{objects: map[string]string{"abc123": rawMessage}}
	prov := &recordingProvider{}
	h := newHandler(t, store, prov, &bytes.Buffer{})
	h.KeyPrefix = ""

	if err := h.HandleEvent(context.Background(), sesEvent(t, "aws:ses", "abc123", "chris@example.org")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.keys[0] != "abc123" {
		t.Errorf("key: got %q, want %q", store.keys[0], "abc123")
	}
}
