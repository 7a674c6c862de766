// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/domain/speech"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Ledger Ports
// -----------------------------------------------------------------------------

// CostLedger tracks per-session and global spend.
// All operations are in-memory and non-blocking; implementations must be
// safe for concurrent use, with per-session atomicity (concurrent RecordCost
// calls for one user must not lose updates).
type CostLedger interface {
	// RecordCost appends a billed operation to the named session and adds
	// its amount to the global accumulator. Negative amounts are rejected
	// with cost.ErrNegativeAmount and leave all state unchanged.
	RecordCost(ctx context.Context, userID, service string, amount money.Amount) error

	// SessionCost returns a snapshot of the named session. The snapshot is
	// a defensive copy; callers cannot mutate ledger state through it.
	// Unseen user ids materialize an empty session, not an error.
	SessionCost(ctx context.Context, userID string) (cost.SessionDetail, error)

	// ResetSession clears the named session's entries and totals and sets a
	// new session start time. Other sessions and the global accumulator are
	// untouched.
	ResetSession(ctx context.Context, userID string) error

	// ThresholdReached reports whether the session's total has reached the
	// threshold. The boundary is inclusive: total == threshold is true.
	ThresholdReached(ctx context.Context, userID string, threshold money.Amount) (bool, error)

	// GlobalMonthlyCost returns the global accumulator.
	GlobalMonthlyCost(ctx context.Context) (money.Amount, error)

	// ResetGlobalMonthly zeroes the global accumulator only; per-session
	// records are untouched.
	ResetGlobalMonthly(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Archive Ports
// -----------------------------------------------------------------------------

// CostArchive persists cost records for audit and reporting.
// The archive is write-behind: admission decisions never read it.
type CostArchive interface {
	// RecordBatch stores multiple cost records.
	RecordBatch(ctx context.Context, records []cost.Record) error

	// ServiceTotals returns accumulated spend per service for a user.
	ServiceTotals(ctx context.Context, userID string) (map[string]money.Amount, error)

	// GlobalTotal returns total spend across all users since a point in time.
	GlobalTotal(ctx context.Context, since time.Time) (money.Amount, error)

	// RecentRecords returns the most recent records for a user, newest first.
	RecentRecords(ctx context.Context, userID string, limit int) ([]cost.Record, error)
}

// CostRecorder accepts cost records for async archival.
type CostRecorder interface {
	// Record queues a record for archival. Non-blocking.
	Record(rec cost.Record)

	// Flush forces immediate archival of queued records.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining records.
	Close() error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// SpeechProvider is the paid text-to-speech upstream.
// Synthesize returns the real incurred cost in the Result even when it also
// returns an error, so partial usage is never under-recorded.
type SpeechProvider interface {
	Synthesize(ctx context.Context, req speech.Request) (speech.Result, error)
}
