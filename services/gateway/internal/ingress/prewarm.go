package ingress

import (
	"context"
	"encoding/json"

	"github.com/vorcigernix/prgate/pkg/webhooks"
)

// TokenWarmer is the cache surface the pre-warm sink needs.
type TokenWarmer interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// PrewarmSink fetches an installation token as soon as a valid event
// arrives, so downstream processing finds a warm cache instead of paying the
// exchange round trip on its first API call. Failures are logged and
// swallowed; the event was already accepted.
type PrewarmSink struct {
	tokens TokenWarmer
	next   Sink
	logf   func(format string, args ...any)
}

func NewPrewarmSink(tokens TokenWarmer, next Sink, logf func(format string, args ...any)) *PrewarmSink {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &PrewarmSink{tokens: tokens, next: next, logf: logf}
}

func (s *PrewarmSink) HandleEvent(ctx context.Context, evt webhooks.Result) {
	if id, ok := installationID(evt.Payload); ok {
		if _, err := s.tokens.Token(ctx, id); err != nil {
			s.logf("token pre-warm for installation %d: %v", id, err)
		}
	}
	if s.next != nil {
		s.next.HandleEvent(ctx, evt)
	}
}

// installationID digs `installation.id` out of a payload. Numbers arrive as
// json float64 through the generic decode.
func installationID(payload map[string]any) (int64, bool) {
	inst, ok := payload["installation"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := inst["id"].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}
