package ingress

import (
	"context"
	"net/http"

	"github.com/vorcigernix/prgate/pkg/httpx"
	"github.com/vorcigernix/prgate/pkg/webhooks"
)

// Sink receives validated events for downstream processing. The gateway does
// not interpret payloads; categorization and persistence live behind this
// interface.
type Sink interface {
	HandleEvent(ctx context.Context, evt webhooks.Result)
}

type Handler struct {
	pipeline *webhooks.Pipeline
	sink     Sink
	logf     func(format string, args ...any)
}

func NewHandler(pipeline *webhooks.Pipeline, sink Sink, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Handler{pipeline: pipeline, sink: sink, logf: logf}
}

// HandleWebhook validates one callback. Every data-dependent rejection maps
// to the same 400 response; the reason is logged, never returned, so probing
// requests learn nothing about which check failed.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	res, err := h.pipeline.Validate(r.Context(), r)
	if err != nil {
		h.logf("webhook validation failed: %v", err)
		httpx.WriteError(w, 500, "INTERNAL", "internal error")
		return
	}
	if !res.Valid {
		h.logf("webhook rejected: reason=%s delivery=%s", res.Reason, r.Header.Get(webhooks.DeliveryIDHeader))
		httpx.WriteError(w, 400, "WEBHOOK_REJECTED", "webhook rejected")
		return
	}
	if h.sink != nil {
		h.sink.HandleEvent(r.Context(), res)
	}
	httpx.WriteJSON(w, 202, map[string]any{
		"request_id":  httpx.NewRequestID(),
		"accepted":    true,
		"event_type":  res.EventType,
		"delivery_id": res.DeliveryID,
	})
}
