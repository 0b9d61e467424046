// Package state keeps the RunState of the current harvesting run, fans it
// out to observers and mirrors it into a durable slot for late joiners.
package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/harvester/models"
)

// ErrSuperseded is returned by Publish for a run that is no longer current.
var ErrSuperseded = errors.New("state: run superseded")

const subscriberBuffer = 16

// Store is the single owner of the current RunState. It is safe for
// concurrent use.
type Store struct {
	slot Slot

	mu      sync.Mutex
	current models.RunState
	subs    map[int]chan models.RunState
	nextSub int
}

// NewStore creates a Store backed by slot. A nil slot uses a MemorySlot.
func NewStore(slot Slot) *Store {
	if slot == nil {
		slot = NewMemorySlot()
	}
	return &Store{
		slot: slot,
		subs: make(map[int]chan models.RunState),
	}
}

// Begin starts a new run for startURL, replacing whatever run was current,
// and publishes its initial state. If the slot rejects that state the run
// is recorded as failed, so the returned state is terminal whenever the
// error is non-nil.
func (s *Store) Begin(ctx context.Context, startURL string) (models.RunState, error) {
	st := models.RunState{
		ID:        uuid.NewString(),
		Status:    models.StatusRunning,
		StartURL:  startURL,
		IsRunning: true,
		Records:   []*models.Record{},
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsRunning {
		slog.Info("run superseded", "run_id", s.current.ID, "by", st.ID)
	}
	s.current = st.Clone()
	if err := s.commit(ctx, st); err != nil {
		st.Status = models.StatusFailed
		st.IsRunning = false
		st.Error = err.Error()
		st.FinishedAt = time.Now().UTC()
		s.current = st.Clone()
		s.broadcast(st)
		return st, err
	}
	return st, nil
}

// Publish makes st the current state. States of a superseded run are
// dropped with ErrSuperseded.
func (s *Store) Publish(ctx context.Context, st models.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID != s.current.ID {
		return ErrSuperseded
	}
	s.current = st.Clone()
	return s.commit(ctx, st)
}

// commit saves and broadcasts st. Callers hold s.mu, so slot writes and
// broadcasts happen in publish order.
func (s *Store) commit(ctx context.Context, st models.RunState) error {
	s.broadcast(st)
	if err := s.slot.Save(ctx, st); err != nil {
		return models.NewHarvestError(models.ErrCodeStoreUnavailable, "save run state failed", err)
	}
	return nil
}

func (s *Store) broadcast(st models.RunState) {
	for _, ch := range s.subs {
		offer(ch, st.Clone())
	}
}

// Snapshot returns the current state. Before any run in this process it
// falls back to the slot, so a restarted server still reports the last run.
func (s *Store) Snapshot(ctx context.Context) (models.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.ID != "" {
		return s.current.Clone(), nil
	}

	st, ok, err := s.slot.Load(ctx)
	if err != nil {
		return models.RunState{}, models.NewHarvestError(models.ErrCodeStoreUnavailable, "load run state failed", err)
	}
	if !ok {
		return models.RunState{Records: []*models.Record{}}, nil
	}
	// A run restored from the slot cannot still be executing here.
	if st.IsRunning {
		st.IsRunning = false
		st.Status = models.StatusFailed
		st.Error = "interrupted by restart"
	}
	s.current = st.Clone()
	return st, nil
}

// Subscribe registers an observer. The channel receives a copy of every
// state published after the call. A slow observer loses the oldest queued
// state, never the newest. The returned func unregisters and closes the
// channel.
func (s *Store) Subscribe() (<-chan models.RunState, func()) {
	ch := make(chan models.RunState, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func offer(ch chan models.RunState, st models.RunState) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
