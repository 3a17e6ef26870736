package stages

import (
	"context"

	"github.com/contentforge/pipeline-be/internal/domain"
)

// Source describes the media input a job points at.
type Source struct {
	Kind     domain.SourceKind
	URL      string
	Filename string
}

// SourceInfo is what probing a source reveals before ingestion.
type SourceInfo struct {
	SizeBytes       int64
	DurationSeconds float64
}

// Usage is the token/cost spend one service call reports.
type Usage struct {
	TokensUsed int64
	CostUSD    float64
}

// IngestOutput is the result of pulling the source into media storage.
type IngestOutput struct {
	MediaAssetID    string
	SizeBytes       int64
	DurationSeconds float64
}

// TranscriptOutput is the result of speech recognition.
type TranscriptOutput struct {
	TranscriptID string
	WordCount    int
	Confidence   float64
	Usage        Usage
}

// InsightsOutput is the result of insight extraction over a transcript.
type InsightsOutput struct {
	InsightSetID string
	TopicCount   int
	Usage        Usage
}

// DraftOutput is the result of draft generation.
type DraftOutput struct {
	DraftID      string
	VariantCount int
	Usage        Usage
}

// ReviewOutput is the result of the quality review pass.
type ReviewOutput struct {
	ReviewID        string
	QualityScore    float64
	HighRisk        bool
	PolicyViolation bool
	Usage           Usage
}

// DeliveryOutput is the result of exporting the approved artifacts.
type DeliveryOutput struct {
	DeliveryID    string
	ArtifactCount int
}

// SourceProber inspects a source before ingestion so validation can enforce
// size and duration limits.
type SourceProber interface {
	Probe(ctx context.Context, source Source) (*SourceInfo, error)
}

// MediaIngestor pulls the source media into storage.
type MediaIngestor interface {
	Ingest(ctx context.Context, source Source) (*IngestOutput, error)
}

// Transcriber turns a media asset into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaAssetID, language string) (*TranscriptOutput, error)
}

// InsightExtractor derives structured insights from a transcript.
type InsightExtractor interface {
	Extract(ctx context.Context, transcriptID string, contract map[string]any) (*InsightsOutput, error)
}

// DraftGenerator produces content drafts from an insight set.
type DraftGenerator interface {
	Draft(ctx context.Context, insightSetID string, contract map[string]any) (*DraftOutput, error)
}

// QualityReviewer scores and screens a draft.
type QualityReviewer interface {
	Review(ctx context.Context, draftID string, contract map[string]any) (*ReviewOutput, error)
}

// Deliverer exports the reviewed artifacts to their destination.
type Deliverer interface {
	Deliver(ctx context.Context, draftID string, contract map[string]any) (*DeliveryOutput, error)
}

// Services bundles the external collaborators the stage handlers call. Any
// implementation may talk to third-party APIs or storage; the pipeline core
// only sees StepResults.
type Services struct {
	Prober    SourceProber
	Ingestor  MediaIngestor
	ASR       Transcriber
	Insights  InsightExtractor
	Drafter   DraftGenerator
	Reviewer  QualityReviewer
	Deliverer Deliverer
}

// StageError lets a service report an explicit pipeline error code instead of
// relying on the handlers' text-based classification.
type StageError struct {
	Code    domain.ErrorCode
	Message string
}

func (e *StageError) Error() string {
	return string(e.Code) + ": " + e.Message
}
