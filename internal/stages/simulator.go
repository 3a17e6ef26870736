package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Simulator implements every stage service with canned results and a small
// delay. It stands in for the real media/AI backends until those are wired
// up, so the worker binary exercises the full pipeline end to end.
type Simulator struct {
	Delay time.Duration
}

// NewSimulator creates a simulator with a 200ms per-call delay.
func NewSimulator() *Simulator {
	return &Simulator{Delay: 200 * time.Millisecond}
}

func (s *Simulator) pause(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("simulated call canceled: %w", ctx.Err())
	}
}

func (s *Simulator) Probe(ctx context.Context, _ Source) (*SourceInfo, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &SourceInfo{SizeBytes: 48 << 20, DurationSeconds: 1800}, nil
}

func (s *Simulator) Ingest(ctx context.Context, _ Source) (*IngestOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &IngestOutput{
		MediaAssetID:    uuid.New().String(),
		SizeBytes:       48 << 20,
		DurationSeconds: 1800,
	}, nil
}

func (s *Simulator) Transcribe(ctx context.Context, _, _ string) (*TranscriptOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &TranscriptOutput{
		TranscriptID: uuid.New().String(),
		WordCount:    4200,
		Confidence:   0.93,
		Usage:        Usage{TokensUsed: 5200, CostUSD: 0.021},
	}, nil
}

func (s *Simulator) Extract(ctx context.Context, _ string, _ map[string]any) (*InsightsOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &InsightsOutput{
		InsightSetID: uuid.New().String(),
		TopicCount:   6,
		Usage:        Usage{TokensUsed: 3100, CostUSD: 0.012},
	}, nil
}

func (s *Simulator) Draft(ctx context.Context, _ string, _ map[string]any) (*DraftOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &DraftOutput{
		DraftID:      uuid.New().String(),
		VariantCount: 3,
		Usage:        Usage{TokensUsed: 8400, CostUSD: 0.034},
	}, nil
}

func (s *Simulator) Review(ctx context.Context, _ string, _ map[string]any) (*ReviewOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &ReviewOutput{
		ReviewID:     uuid.New().String(),
		QualityScore: 0.85,
		Usage:        Usage{TokensUsed: 1200, CostUSD: 0.005},
	}, nil
}

func (s *Simulator) Deliver(ctx context.Context, _ string, _ map[string]any) (*DeliveryOutput, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	return &DeliveryOutput{
		DeliveryID:    uuid.New().String(),
		ArtifactCount: 3,
	}, nil
}

// SimulatedServices bundles one simulator behind every service port.
func SimulatedServices(sim *Simulator) Services {
	return Services{
		Prober:    sim,
		Ingestor:  sim,
		ASR:       sim,
		Insights:  sim,
		Drafter:   sim,
		Reviewer:  sim,
		Deliverer: sim,
	}
}
