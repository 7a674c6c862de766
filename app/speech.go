package app

import (
	"context"
	"time"

	"github.com/artpar/costgate/adapters/metrics"
	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/speech"
	"github.com/artpar/costgate/ports"
	"github.com/rs/zerolog"
)

// SpeechService runs billed synthesis calls behind the cost guard.
// The sequence is fixed: check admission, invoke the provider, record the
// real incurred cost unconditionally, propagate the provider's result.
type SpeechService struct {
	costs    *CostService
	provider ports.SpeechProvider
	metrics  *metrics.Collector // optional
	logger   zerolog.Logger
}

// SpeechDeps contains dependencies for SpeechService.
type SpeechDeps struct {
	Costs    *CostService
	Provider ports.SpeechProvider
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewSpeechService creates a new speech service.
func NewSpeechService(deps SpeechDeps) *SpeechService {
	return &SpeechService{
		costs:    deps.Costs,
		provider: deps.Provider,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Synthesize runs one guarded synthesis call for the given caller.
// When the session threshold is reached the provider is never invoked and a
// *cost.ThresholdError is returned. Whatever cost the provider actually
// incurs is recorded even when the call fails or the caller has gone away.
func (s *SpeechService) Synthesize(ctx context.Context, userID string, req speech.Request) (speech.Result, error) {
	if err := s.costs.CheckAdmission(ctx, userID, cost.ServiceTTS); err != nil {
		return speech.Result{}, err
	}

	start := time.Now()
	result, synthErr := s.provider.Synthesize(ctx, req)

	if s.metrics != nil {
		s.metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
		if synthErr != nil {
			s.metrics.SynthesisErrors.WithLabelValues("upstream").Inc()
		}
	}

	// Record whatever was actually billed, even on failure or client
	// disconnect: the request context may already be cancelled here, so the
	// write must not inherit it.
	if !result.Cost.IsZero() {
		recordCtx := context.WithoutCancel(ctx)
		if err := s.costs.Record(recordCtx, userID, cost.ServiceTTS, result.Cost); err != nil {
			s.logger.Error().Err(err).
				Str("user_id", userID).
				Str("amount", result.Cost.String()).
				Msg("failed to record incurred synthesis cost")
		}
	}

	if synthErr != nil {
		return result, synthErr
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("audio_bytes", len(result.Audio)).
		Str("cost", result.Cost.String()).
		Int64("latency_ms", result.LatencyMs).
		Msg("synthesis complete")

	return result, nil
}
