package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/costgate/adapters/clock"
	"github.com/artpar/costgate/adapters/idgen"
	"github.com/artpar/costgate/adapters/memory"
	"github.com/artpar/costgate/app"
	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/identity"
	"github.com/artpar/costgate/domain/money"
	"github.com/rs/zerolog"
)

// captureRecorder collects records in memory for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	records []cost.Record
}

func (r *captureRecorder) Record(rec cost.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *captureRecorder) Flush(ctx context.Context) error { return nil }
func (r *captureRecorder) Close() error                    { return nil }

func (r *captureRecorder) all() []cost.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cost.Record{}, r.records...)
}

func newCostService(rec *captureRecorder, settings app.GuardSettings) *app.CostService {
	deps := app.CostDeps{
		Ledger: memory.NewLedger(memory.LedgerConfig{}),
		Clock:  clock.NewFake(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
		IDGen:  idgen.NewSequential("rec_"),
		Logger: zerolog.Nop(),
	}
	if rec != nil {
		deps.Recorder = rec
	}
	return app.NewCostService(deps, settings)
}

func TestCostService_Record_ArchivesEntry(t *testing.T) {
	rec := &captureRecorder{}
	svc := newCostService(rec, app.GuardSettings{Threshold: money.MustParse("2.00")})
	ctx := context.Background()

	if err := svc.Record(ctx, "u1", "tts", money.MustParse("0.02")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	records := rec.all()
	if len(records) != 1 {
		t.Fatalf("archived %d records, want 1", len(records))
	}
	if records[0].ID != "rec_1" || records[0].UserID != "u1" || records[0].Service != "tts" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[0].Amount != money.MustParse("0.02") {
		t.Errorf("record amount = %s, want 0.02", records[0].Amount)
	}
}

func TestCostService_Record_InvalidNotArchived(t *testing.T) {
	rec := &captureRecorder{}
	svc := newCostService(rec, app.GuardSettings{Threshold: money.MustParse("2.00")})

	err := svc.Record(context.Background(), "u1", "tts", money.MustParse("-0.01"))
	if !errors.Is(err, cost.ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("rejected write reached the archive")
	}
}

func TestCostService_CheckAdmission(t *testing.T) {
	svc := newCostService(nil, app.GuardSettings{Threshold: money.MustParse("0.05")})
	ctx := context.Background()

	if err := svc.CheckAdmission(ctx, "u1", "tts"); err != nil {
		t.Fatalf("admission denied for empty session: %v", err)
	}

	svc.Record(ctx, "u1", "tts", money.MustParse("0.02"))
	svc.Record(ctx, "u1", "tts", money.MustParse("0.015"))
	if err := svc.CheckAdmission(ctx, "u1", "tts"); err != nil {
		t.Fatalf("admission denied at 0.035 with threshold 0.05: %v", err)
	}

	svc.Record(ctx, "u1", "llm", money.MustParse("0.30"))
	err := svc.CheckAdmission(ctx, "u1", "tts")
	te, ok := cost.IsThresholdError(err)
	if !ok {
		t.Fatalf("expected ThresholdError, got %v", err)
	}
	if te.Current != money.MustParse("0.335") {
		t.Errorf("Current = %s, want 0.335", te.Current)
	}
	if te.Threshold != money.MustParse("0.05") {
		t.Errorf("Threshold = %s, want 0.05", te.Threshold)
	}
}

func TestCostService_CheckAdmission_Disabled(t *testing.T) {
	svc := newCostService(nil, app.GuardSettings{
		Threshold:        money.MustParse("0.01"),
		DisableCostCheck: true,
	})
	ctx := context.Background()

	svc.Record(ctx, "u1", "llm", money.MustParse("100"))
	if err := svc.CheckAdmission(ctx, "u1", "llm"); err != nil {
		t.Errorf("admission denied while cost checking disabled: %v", err)
	}

	reached, _ := svc.ThresholdReached(ctx, "u1")
	if reached {
		t.Error("ThresholdReached true while cost checking disabled")
	}
}

func TestCostService_UpdateSettings(t *testing.T) {
	svc := newCostService(nil, app.GuardSettings{Threshold: money.MustParse("2.00")})
	ctx := context.Background()

	svc.Record(ctx, "u1", "llm", money.MustParse("0.50"))
	if reached, _ := svc.ThresholdReached(ctx, "u1"); reached {
		t.Fatal("threshold reached at 0.50 with threshold 2.00")
	}

	svc.UpdateSettings(app.GuardSettings{Threshold: money.MustParse("0.25")})
	if reached, _ := svc.ThresholdReached(ctx, "u1"); !reached {
		t.Error("threshold not reached after hot-reload lowered it to 0.25")
	}
}

func TestCostService_ResetSession_ReturnsZeroedSnapshot(t *testing.T) {
	svc := newCostService(nil, app.GuardSettings{Threshold: money.MustParse("2.00")})
	ctx := context.Background()

	svc.Record(ctx, "u1", "tts", money.MustParse("0.02"))

	detail, err := svc.ResetSession(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	if !detail.TotalCost.IsZero() || detail.EntryCount() != 0 {
		t.Errorf("snapshot not zeroed: total=%s entries=%d", detail.TotalCost, detail.EntryCount())
	}
}

func TestCostService_ResolveIdentity(t *testing.T) {
	svc := newCostService(nil, app.GuardSettings{
		Threshold:  money.MustParse("2.00"),
		AnonSalt:   "pepper",
		AnonPrefix: "public",
	})

	if got := svc.ResolveIdentity(identity.Request{Explicit: "u1"}); got != "u1" {
		t.Errorf("ResolveIdentity = %q, want u1", got)
	}
	got := svc.ResolveIdentity(identity.Request{RemoteAddr: "10.1.2.3:555"})
	if got == "" || got == "public_unknown" {
		t.Errorf("ResolveIdentity = %q, want hashed anonymous id", got)
	}
}
