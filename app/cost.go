// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync/atomic"

	"github.com/artpar/costgate/adapters/metrics"
	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/identity"
	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/ports"
	"github.com/rs/zerolog"
)

// GuardSettings is the hot-reloadable configuration of the cost guard.
type GuardSettings struct {
	Threshold        money.Amount
	DisableCostCheck bool
	AnonSalt         string
	AnonPrefix       string
}

// CostService owns the session cost guard: it records spend, answers
// admission questions, and resolves caller identities. The ledger is the
// in-process source of truth; the recorder archives entries write-behind.
type CostService struct {
	ledger   ports.CostLedger
	recorder ports.CostRecorder // optional
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector // optional
	logger   zerolog.Logger

	// Hot-reloadable guard settings
	settings atomic.Pointer[GuardSettings]
}

// CostDeps contains dependencies for CostService.
type CostDeps struct {
	Ledger   ports.CostLedger
	Recorder ports.CostRecorder
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewCostService creates a new cost service.
func NewCostService(deps CostDeps, settings GuardSettings) *CostService {
	s := &CostService{
		ledger:   deps.Ledger,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	s.UpdateSettings(settings)
	return s
}

// UpdateSettings swaps the guard settings.
// Thread-safe; called from the config reload hook.
func (s *CostService) UpdateSettings(settings GuardSettings) {
	s.settings.Store(&settings)
}

// Settings returns the current guard settings.
func (s *CostService) Settings() GuardSettings {
	return *s.settings.Load()
}

// ResolveIdentity derives the ledger key for a request.
func (s *CostService) ResolveIdentity(req identity.Request) string {
	settings := s.Settings()
	return identity.Resolve(req, identity.Config{
		Salt:   settings.AnonSalt,
		Prefix: settings.AnonPrefix,
	})
}

// Record appends a billed operation to the caller's session ledger, updates
// the global accumulator, and queues the entry for archival.
func (s *CostService) Record(ctx context.Context, userID, service string, amount money.Amount) error {
	if err := s.ledger.RecordCost(ctx, userID, service, amount); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("service", service).
			Str("amount", amount.String()).
			Msg("cost record rejected")
		return err
	}

	if s.recorder != nil {
		s.recorder.Record(cost.Record{
			ID:        s.idGen.New(),
			UserID:    userID,
			Service:   service,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		})
	}

	if s.metrics != nil {
		s.metrics.EntriesRecorded.WithLabelValues(service).Inc()
		s.metrics.CostRecordedUSD.WithLabelValues(service).Add(amount.Float64())
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("service", service).
		Str("amount", amount.String()).
		Msg("cost recorded")

	return nil
}

// Session returns a snapshot of the caller's session ledger.
func (s *CostService) Session(ctx context.Context, userID string) (cost.SessionDetail, error) {
	return s.ledger.SessionCost(ctx, userID)
}

// ResetSession clears the caller's session ledger and returns the fresh
// zeroed snapshot.
func (s *CostService) ResetSession(ctx context.Context, userID string) (cost.SessionDetail, error) {
	if err := s.ledger.ResetSession(ctx, userID); err != nil {
		return cost.SessionDetail{}, err
	}
	if s.metrics != nil {
		s.metrics.SessionResets.Inc()
	}
	s.logger.Info().Str("user_id", userID).Msg("session cost reset")
	return s.ledger.SessionCost(ctx, userID)
}

// ThresholdReached reports whether the caller's session has reached the
// configured threshold. Always false when cost checking is disabled.
func (s *CostService) ThresholdReached(ctx context.Context, userID string) (bool, error) {
	settings := s.Settings()
	if settings.DisableCostCheck {
		return false, nil
	}
	return s.ledger.ThresholdReached(ctx, userID, settings.Threshold)
}

// CheckAdmission is the gate in front of billed operations: it returns a
// *cost.ThresholdError when the caller's session spend has reached the
// threshold, nil when the operation may proceed.
func (s *CostService) CheckAdmission(ctx context.Context, userID, service string) error {
	settings := s.Settings()
	if settings.DisableCostCheck {
		return nil
	}

	reached, err := s.ledger.ThresholdReached(ctx, userID, settings.Threshold)
	if err != nil {
		return err
	}
	if !reached {
		return nil
	}

	detail, err := s.ledger.SessionCost(ctx, userID)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ThresholdRejections.WithLabelValues(service).Inc()
	}
	s.logger.Warn().
		Str("user_id", userID).
		Str("service", service).
		Str("session_cost", detail.TotalCost.String()).
		Str("threshold", settings.Threshold.String()).
		Msg("billed operation blocked by cost threshold")

	return &cost.ThresholdError{Current: detail.TotalCost, Threshold: settings.Threshold}
}

// GlobalMonthlyCost returns the global accumulator.
func (s *CostService) GlobalMonthlyCost(ctx context.Context) (money.Amount, error) {
	return s.ledger.GlobalMonthlyCost(ctx)
}

// ResetGlobalMonthly zeroes the global accumulator.
// Authorization is the transport layer's responsibility.
func (s *CostService) ResetGlobalMonthly(ctx context.Context) error {
	if err := s.ledger.ResetGlobalMonthly(ctx); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.GlobalResets.Inc()
	}
	s.logger.Info().Msg("global monthly cost reset")
	return nil
}
