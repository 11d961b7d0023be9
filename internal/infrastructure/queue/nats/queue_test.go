package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

func TestDecodeIndexRequestEnvelope(t *testing.T) {
	req := decodeIndexRequest([]byte(`{"trial_id":"NCT001","requested_at":"2025-06-01T12:00:00Z"}`))
	if req.TrialID != "NCT001" {
		t.Fatalf("expected trial id decoded, got %q", req.TrialID)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !req.RequestedAt.Equal(want) {
		t.Fatalf("expected requested_at decoded, got %v", req.RequestedAt)
	}
}

func TestDecodeIndexRequestFallsBackToBareID(t *testing.T) {
	req := decodeIndexRequest([]byte("NCT002"))
	if req.TrialID != "NCT002" {
		t.Fatalf("expected bare payload treated as trial id, got %q", req.TrialID)
	}
	if !req.RequestedAt.IsZero() {
		t.Fatalf("expected zero requested_at for bare payload, got %v", req.RequestedAt)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"canceled context", context.Canceled, false, false},
		{"no servers", nats.ErrNoServers, true, true},
		{"timeout", nats.ErrTimeout, true, true},
		{"connection closed", nats.ErrConnectionClosed, true, true},
		{"other", errors.New("bad subject"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := classifyNATSError(tt.err)
			if class.Retryable != tt.retryable {
				t.Fatalf("retryable = %v, want %v", class.Retryable, tt.retryable)
			}
			if class.RecordFailure != tt.recordFailure {
				t.Fatalf("recordFailure = %v, want %v", class.RecordFailure, tt.recordFailure)
			}
		})
	}
}

func TestWrapTemporaryOnlyForRetryable(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected retryable failure wrapped temporary, got %v", err)
	}
	plain := errors.New("bad subject")
	if err := wrapTemporaryIfNeeded(plain); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected non-retryable failure left unwrapped, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nil); err != nil {
		t.Fatalf("expected nil passthrough, got %v", err)
	}
}
