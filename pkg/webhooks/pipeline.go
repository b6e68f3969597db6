package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	SignatureHeader  = "X-Signature"
	EventTypeHeader  = "X-Event-Type"
	DeliveryIDHeader = "X-Delivery-Id"
)

const DefaultMaxBodyBytes = 5 << 20 // 5MB

type Result struct {
	Valid      bool
	Reason     Reason
	EventType  string
	DeliveryID string
	Payload    map[string]any
}

// Pipeline authenticates and admits inbound webhook requests. Checks run
// cheapest-first and short-circuit: declared size, event type, body read,
// signature, replay, JSON parse. Signature verification runs strictly before
// replay admission so a forged request can never consume a legitimate
// delivery-id slot.
type Pipeline struct {
	secret        string
	allowedEvents []string
	maxBodyBytes  int64
	replay        *ReplayGuard
}

func NewPipeline(secret string, allowedEvents []string, maxBodyBytes int64, replay *ReplayGuard) *Pipeline {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Pipeline{
		secret:        secret,
		allowedEvents: allowedEvents,
		maxBodyBytes:  maxBodyBytes,
		replay:        replay,
	}
}

// Validate runs the admission checks over one request. The returned error is
// reserved for infrastructure failures (body read, delivery store); every
// data-dependent rejection comes back as a Result with a Reason.
func (p *Pipeline) Validate(ctx context.Context, r *http.Request) (Result, error) {
	if res := CheckSize(r.Header.Get("Content-Length"), p.maxBodyBytes); !res.Valid {
		return Result{Reason: res.Reason}, nil
	}
	eventType := r.Header.Get(EventTypeHeader)
	if res := CheckEventType(eventType, p.allowedEvents); !res.Valid {
		return Result{Reason: res.Reason}, nil
	}

	// The body is read exactly once: the same bytes feed signature
	// verification and the JSON parse. MaxBytesReader enforces the ceiling
	// even when Content-Length was absent.
	rawBody, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, p.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Result{Reason: ReasonPayloadTooLarge}, nil
		}
		return Result{}, fmt.Errorf("read webhook body: %w", err)
	}

	if res := VerifySignature(rawBody, r.Header.Get(SignatureHeader), p.secret); !res.Valid {
		return Result{Reason: res.Reason}, nil
	}

	deliveryID := r.Header.Get(DeliveryIDHeader)
	admit, err := p.replay.Admit(ctx, deliveryID, time.Time{})
	if err != nil {
		return Result{}, fmt.Errorf("replay admission: %w", err)
	}
	if admit.IsReplay {
		return Result{Reason: admit.Reason}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return Result{Reason: ReasonMalformedJSON}, nil
	}
	return Result{
		Valid:      true,
		EventType:  eventType,
		DeliveryID: deliveryID,
		Payload:    payload,
	}, nil
}
