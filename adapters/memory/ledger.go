package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/ports"
)

// session is the mutable state for one caller identity.
type session struct {
	entries   []cost.Entry
	total     money.Amount
	byService map[string]money.Amount
	startedAt time.Time
}

// ledgerShard is a single shard of the ledger.
type ledgerShard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// Ledger is a sharded in-memory implementation of ports.CostLedger.
// Sessions are spread over shards by a hash of the user id, so recording for
// distinct users does not contend on one lock; recording for one user is
// serialized by its shard mutex. The global accumulator is a separate atomic
// so resetting it never touches session state.
type Ledger struct {
	shards    []*ledgerShard
	numShards int
	clock     ports.Clock
	global    atomic.Int64 // micro-dollars
}

// LedgerConfig configures the ledger.
type LedgerConfig struct {
	NumShards int         // Number of shards (default: 32)
	Clock     ports.Clock // Time source (default: wall clock)
}

// realClock avoids importing adapters/clock just for the default.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewLedger creates a new sharded in-memory cost ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}

	l := &Ledger{
		shards:    make([]*ledgerShard, cfg.NumShards),
		numShards: cfg.NumShards,
		clock:     cfg.Clock,
	}
	for i := range l.shards {
		l.shards[i] = &ledgerShard{sessions: make(map[string]*session)}
	}
	return l
}

// getShard returns the shard for a given user id using consistent hashing.
func (l *Ledger) getShard(userID string) *ledgerShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return l.shards[h.Sum32()%uint32(l.numShards)]
}

// RecordCost appends a billed operation to the named session and updates the
// global accumulator.
func (l *Ledger) RecordCost(ctx context.Context, userID, service string, amount money.Amount) error {
	if err := cost.Validate(userID, service, amount); err != nil {
		return err
	}

	now := l.clock.Now()
	shard := l.getShard(userID)

	shard.mu.Lock()
	s, ok := shard.sessions[userID]
	if !ok {
		s = &session{
			byService: make(map[string]money.Amount),
			startedAt: now,
		}
		shard.sessions[userID] = s
	}
	s.entries = append(s.entries, cost.Entry{Service: service, Amount: amount, Timestamp: now})
	s.total = s.total.Add(amount)
	s.byService[service] = s.byService[service].Add(amount)
	shard.mu.Unlock()

	l.global.Add(amount.Micros())
	return nil
}

// SessionCost returns a defensive-copy snapshot of the named session,
// materializing an empty session for unseen user ids.
func (l *Ledger) SessionCost(ctx context.Context, userID string) (cost.SessionDetail, error) {
	if userID == "" {
		return cost.SessionDetail{}, cost.ErrEmptyUserID
	}

	shard := l.getShard(userID)

	shard.mu.RLock()
	s, ok := shard.sessions[userID]
	if ok {
		detail := snapshot(userID, s)
		shard.mu.RUnlock()
		return detail, nil
	}
	shard.mu.RUnlock()

	// Lazily materialize. Re-check under the write lock: another goroutine
	// may have created the session between the two lock acquisitions.
	shard.mu.Lock()
	s, ok = shard.sessions[userID]
	if !ok {
		s = &session{
			byService: make(map[string]money.Amount),
			startedAt: l.clock.Now(),
		}
		shard.sessions[userID] = s
	}
	detail := snapshot(userID, s)
	shard.mu.Unlock()

	return detail, nil
}

// ResetSession clears the named session's entries and totals and starts a
// fresh session window. Other sessions and the global accumulator are untouched.
func (l *Ledger) ResetSession(ctx context.Context, userID string) error {
	if userID == "" {
		return cost.ErrEmptyUserID
	}

	shard := l.getShard(userID)

	shard.mu.Lock()
	shard.sessions[userID] = &session{
		byService: make(map[string]money.Amount),
		startedAt: l.clock.Now(),
	}
	shard.mu.Unlock()

	return nil
}

// ThresholdReached reports whether the session total has reached the
// threshold (boundary inclusive).
func (l *Ledger) ThresholdReached(ctx context.Context, userID string, threshold money.Amount) (bool, error) {
	if userID == "" {
		return false, cost.ErrEmptyUserID
	}

	shard := l.getShard(userID)

	shard.mu.RLock()
	var total money.Amount
	if s, ok := shard.sessions[userID]; ok {
		total = s.total
	}
	shard.mu.RUnlock()

	return total >= threshold, nil
}

// GlobalMonthlyCost returns the global accumulator.
func (l *Ledger) GlobalMonthlyCost(ctx context.Context) (money.Amount, error) {
	return money.FromMicros(l.global.Load()), nil
}

// ResetGlobalMonthly zeroes the global accumulator only.
func (l *Ledger) ResetGlobalMonthly(ctx context.Context) error {
	l.global.Store(0)
	return nil
}

// SessionCount returns the number of materialized sessions (for testing).
func (l *Ledger) SessionCount() int {
	n := 0
	for _, shard := range l.shards {
		shard.mu.RLock()
		n += len(shard.sessions)
		shard.mu.RUnlock()
	}
	return n
}

// snapshot copies a session into an immutable detail value.
// Caller must hold the shard lock.
func snapshot(userID string, s *session) cost.SessionDetail {
	entries := make([]cost.Entry, len(s.entries))
	copy(entries, s.entries)

	byService := make(map[string]money.Amount, len(s.byService))
	for k, v := range s.byService {
		byService[k] = v
	}

	return cost.SessionDetail{
		UserID:           userID,
		Entries:          entries,
		TotalCost:        s.total,
		CostsByService:   byService,
		SessionStartTime: s.startedAt,
	}
}

// Ensure interface compliance.
var _ ports.CostLedger = (*Ledger)(nil)
