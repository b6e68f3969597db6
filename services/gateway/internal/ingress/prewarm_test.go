package ingress

import (
	"context"
	"errors"
	"testing"

	"github.com/vorcigernix/prgate/pkg/webhooks"
)

type fakeWarmer struct {
	requested []int64
	err       error
}

func (f *fakeWarmer) Token(_ context.Context, installationID int64) (string, error) {
	f.requested = append(f.requested, installationID)
	return "tok", f.err
}

func TestPrewarmSink_FetchesInstallationToken(t *testing.T) {
	warmer := &fakeWarmer{}
	next := &recordingSink{}
	s := NewPrewarmSink(warmer, next, nil)

	evt := webhooks.Result{
		Valid:     true,
		EventType: "pull_request",
		Payload: map[string]any{
			"action":       "opened",
			"installation": map[string]any{"id": float64(42)},
		},
	}
	s.HandleEvent(context.Background(), evt)

	if len(warmer.requested) != 1 || warmer.requested[0] != 42 {
		t.Fatalf("expected token request for installation 42, got %v", warmer.requested)
	}
	if len(next.events) != 1 {
		t.Fatalf("event not forwarded downstream")
	}
}

func TestPrewarmSink_NoInstallationInPayload(t *testing.T) {
	warmer := &fakeWarmer{}
	next := &recordingSink{}
	s := NewPrewarmSink(warmer, next, nil)

	s.HandleEvent(context.Background(), webhooks.Result{
		Valid:   true,
		Payload: map[string]any{"action": "opened"},
	})

	if len(warmer.requested) != 0 {
		t.Fatalf("unexpected token request: %v", warmer.requested)
	}
	if len(next.events) != 1 {
		t.Fatalf("event not forwarded downstream")
	}
}

func TestPrewarmSink_WarmFailureDoesNotBlockEvent(t *testing.T) {
	warmer := &fakeWarmer{err: errors.New("exchange down")}
	next := &recordingSink{}
	s := NewPrewarmSink(warmer, next, nil)

	s.HandleEvent(context.Background(), webhooks.Result{
		Valid: true,
		Payload: map[string]any{
			"installation": map[string]any{"id": float64(7)},
		},
	})

	if len(next.events) != 1 {
		t.Fatalf("warm failure must not drop the event")
	}
}
