package webhooks

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const DefaultFreshnessWindow = 5 * time.Minute

// sweepInverse sets the 1-in-N chance that an admission also sweeps expired
// records. The sweep only bounds memory; no behavior depends on its timing.
const sweepInverse = 64

// DeliveryStore records delivery ids for de-duplication. InsertIfAbsent must
// be atomic: two concurrent inserts of the same id must yield exactly one
// true result.
type DeliveryStore interface {
	InsertIfAbsent(ctx context.Context, deliveryID string, receivedAt time.Time) (inserted bool, err error)
	SweepBefore(ctx context.Context, cutoff time.Time) error
}

// MemoryDeliveryStore is the single-process store. Multi-instance
// deployments substitute a shared store behind the same interface.
type MemoryDeliveryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{seen: map[string]time.Time{}}
}

func (s *MemoryDeliveryStore) InsertIfAbsent(_ context.Context, deliveryID string, receivedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[deliveryID]; ok {
		return false, nil
	}
	s.seen[deliveryID] = receivedAt
	return true, nil
}

func (s *MemoryDeliveryStore) SweepBefore(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return nil
}

type AdmitResult struct {
	IsReplay bool
	Reason   Reason
}

// ReplayGuard de-duplicates deliveries by id within a freshness window.
type ReplayGuard struct {
	store       DeliveryStore
	window      time.Duration
	now         func() time.Time
	sweepChance int
}

func NewReplayGuard(store DeliveryStore, window time.Duration) *ReplayGuard {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &ReplayGuard{
		store:       store,
		window:      window,
		now:         time.Now,
		sweepChance: sweepInverse,
	}
}

// Admit records a delivery id and reports whether it was seen before. A zero
// deliveryTime means the sender declared no timestamp; a declared timestamp
// older than the freshness window rejects the delivery without recording it,
// so a later sweep can in principle re-admit a very delayed replay. A missing
// id is admitted but tagged ReasonMissingDeliveryID so policy layers can
// reject it separately.
func (g *ReplayGuard) Admit(ctx context.Context, deliveryID string, deliveryTime time.Time) (AdmitResult, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return AdmitResult{Reason: ReasonMissingDeliveryID}, nil
	}
	now := g.now()
	if !deliveryTime.IsZero() {
		age := now.Sub(deliveryTime)
		if age < 0 {
			age = -age
		}
		if age > g.window {
			return AdmitResult{IsReplay: true, Reason: ReasonStaleTimestamp}, nil
		}
	}
	inserted, err := g.store.InsertIfAbsent(ctx, deliveryID, now)
	if err != nil {
		return AdmitResult{}, err
	}
	if !inserted {
		return AdmitResult{IsReplay: true, Reason: ReasonAlreadyProcessed}, nil
	}
	if g.sweepChance > 0 && rand.Intn(g.sweepChance) == 0 {
		_ = g.store.SweepBefore(ctx, now.Add(-g.window))
	}
	return AdmitResult{}, nil
}
