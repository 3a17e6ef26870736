package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/pipeline"
)

// Context output keys produced by the stage handlers.
const (
	OutputMediaAssetID = "media_asset_id"
	OutputTranscriptID = "transcript_id"
	OutputInsightSetID = "insight_set_id"
	OutputDraftID      = "draft_id"
	OutputReviewID     = "review_id"
	OutputDeliveryID   = "delivery_id"
)

// minTranscriptConfidence is the floor below which a transcript is unusable
// and the job needs user input (better audio or a manual transcript).
const minTranscriptConfidence = 0.5

// NewRegistry builds the seven stage handlers over the supplied services.
func NewRegistry(svcs Services, limits Limits) map[pipeline.Stage]pipeline.Handler {
	return map[pipeline.Stage]pipeline.Handler{
		pipeline.StageValidation: validationHandler(svcs.Prober, limits),
		pipeline.StageIngestion:  ingestionHandler(svcs.Ingestor),
		pipeline.StageASR:        asrHandler(svcs.ASR),
		pipeline.StageInsights:   insightsHandler(svcs.Insights),
		pipeline.StageDrafting:   draftingHandler(svcs.Drafter),
		pipeline.StageQA:         qaHandler(svcs.Reviewer),
		pipeline.StageDelivery:   deliveryHandler(svcs.Deliverer),
	}
}

func ingestionHandler(svc MediaIngestor) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Ingest(ctx, sourceFromJob(pctx.Job))
		if err != nil {
			return classifyFailure(pipeline.StageIngestion, err, domain.ErrCodeUploadFailed)
		}
		return pipeline.StepResult{
			Success: true,
			Stage:   pipeline.StageIngestion,
			Outputs: map[string]string{OutputMediaAssetID: out.MediaAssetID},
			Metrics: map[string]any{
				"size_bytes":       out.SizeBytes,
				"duration_seconds": out.DurationSeconds,
			},
		}
	}
}

func asrHandler(svc Transcriber) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Transcribe(ctx, pctx.Outputs[OutputMediaAssetID], pctx.Job.Language)
		if err != nil {
			return classifyFailure(pipeline.StageASR, err, domain.ErrCodeTranscriptionFailed)
		}
		if out.Confidence < minTranscriptConfidence {
			return failure(pipeline.StageASR, domain.ErrCodeLowQualityASR,
				fmt.Sprintf("transcript confidence %.2f below %.2f", out.Confidence, minTranscriptConfidence))
		}
		return pipeline.StepResult{
			Success:    true,
			Stage:      pipeline.StageASR,
			Outputs:    map[string]string{OutputTranscriptID: out.TranscriptID},
			TokensUsed: out.Usage.TokensUsed,
			CostUSD:    out.Usage.CostUSD,
			Metrics: map[string]any{
				"word_count": out.WordCount,
				"confidence": out.Confidence,
			},
		}
	}
}

func insightsHandler(svc InsightExtractor) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Extract(ctx, pctx.Outputs[OutputTranscriptID], pctx.Contract)
		if err != nil {
			return classifyFailure(pipeline.StageInsights, err, domain.ErrCodeGenerationFailed)
		}
		return pipeline.StepResult{
			Success:    true,
			Stage:      pipeline.StageInsights,
			Outputs:    map[string]string{OutputInsightSetID: out.InsightSetID},
			TokensUsed: out.Usage.TokensUsed,
			CostUSD:    out.Usage.CostUSD,
			Metrics:    map[string]any{"topic_count": out.TopicCount},
		}
	}
}

func draftingHandler(svc DraftGenerator) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Draft(ctx, pctx.Outputs[OutputInsightSetID], pctx.Contract)
		if err != nil {
			return classifyFailure(pipeline.StageDrafting, err, domain.ErrCodeGenerationFailed)
		}
		return pipeline.StepResult{
			Success:    true,
			Stage:      pipeline.StageDrafting,
			Outputs:    map[string]string{OutputDraftID: out.DraftID},
			TokensUsed: out.Usage.TokensUsed,
			CostUSD:    out.Usage.CostUSD,
			Metrics:    map[string]any{"variant_count": out.VariantCount},
		}
	}
}

func qaHandler(svc QualityReviewer) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Review(ctx, pctx.Outputs[OutputDraftID], pctx.Contract)
		if err != nil {
			return classifyFailure(pipeline.StageQA, err, domain.ErrCodeGenerationFailed)
		}
		if out.HighRisk {
			return failure(pipeline.StageQA, domain.ErrCodeHighRiskContent,
				fmt.Sprintf("review %s flagged the draft as high risk", out.ReviewID))
		}
		if out.PolicyViolation {
			return failure(pipeline.StageQA, domain.ErrCodeContentPolicy,
				fmt.Sprintf("review %s found a content policy violation", out.ReviewID))
		}
		return pipeline.StepResult{
			Success:    true,
			Stage:      pipeline.StageQA,
			Outputs:    map[string]string{OutputReviewID: out.ReviewID},
			TokensUsed: out.Usage.TokensUsed,
			CostUSD:    out.Usage.CostUSD,
			Metrics:    map[string]any{"quality_score": out.QualityScore},
		}
	}
}

func deliveryHandler(svc Deliverer) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		out, err := svc.Deliver(ctx, pctx.Outputs[OutputDraftID], pctx.Contract)
		if err != nil {
			return classifyFailure(pipeline.StageDelivery, err, domain.ErrCodeNetworkError)
		}
		return pipeline.StepResult{
			Success: true,
			Stage:   pipeline.StageDelivery,
			Outputs: map[string]string{OutputDeliveryID: out.DeliveryID},
			Metrics: map[string]any{"artifact_count": out.ArtifactCount},
		}
	}
}

// failure builds a failed StepResult with an explicit code.
func failure(stage pipeline.Stage, code domain.ErrorCode, msg string) pipeline.StepResult {
	return pipeline.StepResult{
		Success:      false,
		Stage:        stage,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}

// classifyFailure maps a service error to a StepResult. A *StageError carries
// its own code; otherwise the raw text heuristic runs, and when that matches
// nothing the stage's fallback code applies.
func classifyFailure(stage pipeline.Stage, err error, fallback domain.ErrorCode) pipeline.StepResult {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return failure(stage, stageErr.Code, stageErr.Message)
	}

	if code, ok := domain.ClassifyUpstreamError(err.Error()); ok {
		return failure(stage, code, err.Error())
	}

	return failure(stage, fallback, err.Error())
}
