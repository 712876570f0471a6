// Package usage tracks per-provider daily call counters and failure
// cooldowns. In-memory state is authoritative for the life of the process;
// persistence is best-effort and asynchronous so a slow or unavailable
// store can never block or fail the request path. The worst case after a
// crash is a usage counter drifting low, which under-counts but never
// causes an outage.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Upreak/miv1-sub001/pkg/usage/storage"
)

// dateLayout is the calendar-day format used for rollover comparison.
// Comparing date strings rather than elapsed time means a process
// restarted just after midnight still resets correctly.
const dateLayout = "2006-01-02"

// State is a read-only snapshot of a provider's usage state.
type State struct {
	// Date is the calendar day Count applies to.
	Date string

	// Count is the number of successful calls recorded today.
	Count int64

	// CooldownUntil is when the cooldown expires. Zero time means no
	// cooldown is active.
	CooldownUntil time.Time
}

// providerState is the mutable per-provider record. Each provider has its
// own lock so updates to different providers never contend.
type providerState struct {
	mu            sync.Mutex
	date          string
	count         int64
	cooldownUntil time.Time
}

// Tracker maintains usage state for all providers. It lazily creates state
// for any identity it is asked about; the registry remains the sole source
// of which identities exist.
type Tracker struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	states map[string]*providerState

	// writes feeds the single persistence writer goroutine. Routing all
	// mutations through one channel keeps them ordered; sends are
	// non-blocking, so a full buffer drops the write with a log line
	// instead of stalling a caller.
	writes chan writeOp
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// writeOp is one persistence mutation: an upsert, or a delete when
// tombstone is set.
type writeOp struct {
	record    storage.Record
	tombstone bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker backed by the given storage, restoring any
// previously persisted state. A nil backend disables persistence.
func NewTracker(backend storage.Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend: backend,
		logger:  slog.Default().With("component", "usage"),
		now:     time.Now,
		states:  make(map[string]*providerState),
		writes:  make(chan writeOp, 256),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.restore()

	t.wg.Add(1)
	go t.runWriter()

	return t
}

// CanUse reports whether the provider is currently usable: not in cooldown
// and under its daily limit. A dailyLimit of zero means unlimited. The
// stored date is rolled over to today first, so the first check on a new
// day sees a zero counter.
func (t *Tracker) CanUse(provider string, dailyLimit int64) bool {
	ps := t.state(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := t.now()
	t.rolloverLocked(provider, ps, now)

	if now.Before(ps.cooldownUntil) {
		return false
	}
	if dailyLimit > 0 && ps.count >= dailyLimit {
		return false
	}
	return true
}

// RecordSuccess increments today's counter for the provider and schedules
// a persist.
func (t *Tracker) RecordSuccess(provider string) {
	ps := t.state(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	t.rolloverLocked(provider, ps, t.now())
	ps.count++
	t.persistLocked(provider, ps)
}

// SetCooldown excludes the provider from selection for the given duration.
// The daily counter is not reset; cooldown and quota are independent.
func (t *Tracker) SetCooldown(provider string, d time.Duration) {
	ps := t.state(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.cooldownUntil = t.now().Add(d)
	t.persistLocked(provider, ps)

	t.logger.Info("provider cooldown set",
		"provider", provider,
		"until", ps.cooldownUntil.Format(time.RFC3339),
	)
}

// ClearCooldown removes any active cooldown for the provider. This is an
// operator-facing escape hatch; routine traffic never clears cooldowns.
func (t *Tracker) ClearCooldown(provider string) {
	ps := t.state(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.cooldownUntil = time.Time{}
	t.persistLocked(provider, ps)
}

// GetState returns a snapshot of the provider's usage state, rolling the
// date over first if needed.
func (t *Tracker) GetState(provider string) State {
	ps := t.state(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	t.rolloverLocked(provider, ps, t.now())

	return State{
		Date:          ps.date,
		Count:         ps.count,
		CooldownUntil: ps.cooldownUntil,
	}
}

// Remove drops in-memory and persisted state for a provider that has been
// removed from the fleet. The delete goes through the writer channel so it
// cannot be overtaken by an earlier pending save.
func (t *Tracker) Remove(provider string) {
	t.mu.Lock()
	delete(t.states, provider)
	t.mu.Unlock()

	if t.backend == nil {
		return
	}
	t.enqueue(writeOp{record: storage.Record{Provider: provider}, tombstone: true})
}

// Close stops the persistence writer, flushing pending writes.
func (t *Tracker) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
	return nil
}

// state returns the per-provider record, creating it on first use.
func (t *Tracker) state(provider string) *providerState {
	t.mu.RLock()
	ps, ok := t.states[provider]
	t.mu.RUnlock()
	if ok {
		return ps
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ps, ok = t.states[provider]; ok {
		return ps
	}
	ps = &providerState{date: t.now().Format(dateLayout)}
	t.states[provider] = ps
	return ps
}

// rolloverLocked resets the counter when the stored date is not today.
// Cooldown is deliberately untouched: a provider that failed at 23:59
// stays cooled down into the new day until the interval elapses.
// Caller must hold ps.mu.
func (t *Tracker) rolloverLocked(provider string, ps *providerState, now time.Time) {
	today := now.Format(dateLayout)
	if ps.date == today {
		return
	}

	t.logger.Debug("daily usage counter reset",
		"provider", provider,
		"previous_date", ps.date,
		"previous_count", ps.count,
	)

	ps.date = today
	ps.count = 0
	t.persistLocked(provider, ps)
}

// persistLocked schedules an asynchronous write of the provider's current
// state. Caller must hold ps.mu.
func (t *Tracker) persistLocked(provider string, ps *providerState) {
	if t.backend == nil {
		return
	}

	var cooldownUntil int64
	if !ps.cooldownUntil.IsZero() {
		cooldownUntil = ps.cooldownUntil.Unix()
	}

	t.enqueue(writeOp{record: storage.Record{
		Provider:      provider,
		Date:          ps.date,
		Count:         ps.count,
		CooldownUntil: cooldownUntil,
		UpdatedAt:     t.now(),
	}})
}

func (t *Tracker) enqueue(op writeOp) {
	select {
	case t.writes <- op:
	default:
		t.logger.Warn("usage persistence buffer full, dropping write", "provider", op.record.Provider)
	}
}

// restore loads persisted state into memory at startup.
func (t *Tracker) restore() {
	if t.backend == nil {
		return
	}

	records, err := t.backend.LoadAll(context.Background())
	if err != nil {
		t.logger.Warn("failed to restore usage state, starting empty", "error", err)
		return
	}

	for provider, record := range records {
		ps := &providerState{
			date:  record.Date,
			count: record.Count,
		}
		if record.CooldownUntil > 0 {
			ps.cooldownUntil = time.Unix(record.CooldownUntil, 0)
		}
		t.states[provider] = ps
	}

	if len(records) > 0 {
		t.logger.Info("usage state restored", "providers", len(records))
	}
}

// runWriter is the single persistence writer. Serializing all writes
// through one goroutine keeps the store simple and race-free; failures are
// logged and swallowed.
func (t *Tracker) runWriter() {
	defer t.wg.Done()

	for {
		select {
		case op := <-t.writes:
			t.apply(op)
		case <-t.done:
			// Drain pending writes before exiting.
			for {
				select {
				case op := <-t.writes:
					t.apply(op)
				default:
					return
				}
			}
		}
	}
}

// apply performs one persistence mutation.
func (t *Tracker) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if op.tombstone {
		err = t.backend.Delete(ctx, op.record.Provider)
	} else {
		err = t.backend.Save(ctx, &op.record)
	}
	if err != nil {
		t.logger.Warn("failed to persist usage state",
			"provider", op.record.Provider,
			"error", err,
		)
	}
}
