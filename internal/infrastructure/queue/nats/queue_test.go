package nats

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func TestEventRoundTrip(t *testing.T) {
	payload, err := encodeEvent(domain.IngestedEvent{DocumentID: "doc-1", UserHint: "rfq"})
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	if string(payload) != `{"document_id":"doc-1","user_hint":"rfq"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
	event, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.DocumentID != "doc-1" || event.UserHint != "rfq" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestDecodeEventAcceptsBareID(t *testing.T) {
	event, err := decodeEvent([]byte(" doc-7\n"))
	if err != nil || event.DocumentID != "doc-7" {
		t.Fatalf("unexpected result %+v %v", event, err)
	}
}

func TestDecodeEventRejectsBadPayloads(t *testing.T) {
	for _, raw := range []string{"", "{", `{"user_hint":"po"}`} {
		if _, err := decodeEvent([]byte(raw)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("decodeEvent(%q) expected invalid input, got %v", raw, err)
		}
	}
	if _, err := encodeEvent(domain.IngestedEvent{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("encodeEvent with empty id expected invalid input, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed)); !c.Retryable {
		t.Fatalf("closed connection must be retryable, got %+v", c)
	}
	if c := classifyNATSError(nats.ErrBadSubject); c.Retryable || !c.RecordFailure {
		t.Fatalf("bad subject must fail fast, got %+v", c)
	}
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must be ignored, got %+v", c)
	}
}
