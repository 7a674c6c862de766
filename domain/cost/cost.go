// Package cost provides the value types of the session cost ledger.
// All types are immutable values; mutation happens only inside ledger
// implementations. No side effects here.
package cost

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpar/costgate/domain/money"
)

// Well-known billed service names. Arbitrary non-empty names are accepted;
// these constants exist for the built-in consumers.
const (
	ServiceTTS = "tts"
	ServiceLLM = "llm"
)

var (
	// ErrNegativeAmount is returned when a cost below zero is recorded.
	// Negative amounts are rejected, never clamped.
	ErrNegativeAmount = errors.New("cost: amount must not be negative")

	// ErrEmptyService is returned when a cost entry has no service name.
	ErrEmptyService = errors.New("cost: service must not be empty")

	// ErrEmptyUserID is returned when a ledger operation has no caller identity.
	ErrEmptyUserID = errors.New("cost: user id must not be empty")
)

// Entry is a single billed operation (immutable value type).
type Entry struct {
	Service   string
	Amount    money.Amount
	Timestamp time.Time
}

// SessionDetail is the aggregate for one caller identity.
// Invariants: TotalCost equals the sum of all entry amounts, and the values
// of CostsByService sum to TotalCost.
type SessionDetail struct {
	UserID           string
	Entries          []Entry
	TotalCost        money.Amount
	CostsByService   map[string]money.Amount
	SessionStartTime time.Time
}

// EntryCount returns the number of recorded entries.
func (d SessionDetail) EntryCount() int {
	return len(d.Entries)
}

// Validate checks that an entry may be recorded.
func Validate(userID, service string, amount money.Amount) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if service == "" {
		return ErrEmptyService
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Record is the archive row form of an entry. Unlike Entry it carries the
// caller identity and a unique id, so batches from many sessions can share
// one table.
type Record struct {
	ID        string
	UserID    string
	Service   string
	Amount    money.Amount
	CreatedAt time.Time
}

// ThresholdError signals that a session's spend has reached the configured
// threshold. It is a retryable-later condition, not a crash: it carries the
// numbers the caller needs to react.
type ThresholdError struct {
	Current   money.Amount
	Threshold money.Amount
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("cost: session spend %s has reached threshold %s", e.Current, e.Threshold)
}

// IsThresholdError reports whether err is a ThresholdError and returns it.
func IsThresholdError(err error) (*ThresholdError, bool) {
	var te *ThresholdError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
