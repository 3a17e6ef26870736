package stages

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/contentforge/pipeline-be/internal/domain"
	"github.com/contentforge/pipeline-be/internal/pipeline"
)

// Limits bounds what the validation stage accepts.
type Limits struct {
	MaxFileSizeBytes   int64
	MaxDurationSeconds float64
}

// DefaultLimits returns the standard source limits: 2 GiB and 4 hours.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes:   2 << 30,
		MaxDurationSeconds: 4 * 60 * 60,
	}
}

// supportedExtensions is the upload allow-list.
var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".mp4":  {},
	".m4a":  {},
	".wav":  {},
	".flac": {},
	".mov":  {},
	".webm": {},
}

// validationHandler checks the job's source descriptor against the input
// rules and limits. It is the one stage implemented inside this repo because
// its error codes are part of the closed code set.
func validationHandler(prober SourceProber, limits Limits) pipeline.Handler {
	return func(ctx context.Context, pctx *pipeline.Context) pipeline.StepResult {
		source := sourceFromJob(pctx.Job)

		if code, msg := checkSource(source); code != "" {
			return failure(pipeline.StageValidation, code, msg)
		}

		info, err := prober.Probe(ctx, source)
		if err != nil {
			return classifyFailure(pipeline.StageValidation, err, domain.ErrCodeInvalidInput)
		}

		if limits.MaxFileSizeBytes > 0 && info.SizeBytes > limits.MaxFileSizeBytes {
			return failure(pipeline.StageValidation, domain.ErrCodeFileTooLarge,
				fmt.Sprintf("source is %d bytes, limit is %d", info.SizeBytes, limits.MaxFileSizeBytes))
		}
		if limits.MaxDurationSeconds > 0 && info.DurationSeconds > limits.MaxDurationSeconds {
			return failure(pipeline.StageValidation, domain.ErrCodeDurationExceeded,
				fmt.Sprintf("source is %.0fs long, limit is %.0fs", info.DurationSeconds, limits.MaxDurationSeconds))
		}

		return pipeline.StepResult{
			Success: true,
			Stage:   pipeline.StageValidation,
			Metrics: map[string]any{
				"size_bytes":       info.SizeBytes,
				"duration_seconds": info.DurationSeconds,
			},
		}
	}
}

// checkSource applies the static source-descriptor rules. It returns an empty
// code when the source passes.
func checkSource(source Source) (domain.ErrorCode, string) {
	switch source.Kind {
	case domain.SourceKindURL:
		if source.URL == "" {
			return domain.ErrCodeInvalidInput, "source_url is empty"
		}
		parsed, err := url.Parse(source.URL)
		if err != nil {
			return domain.ErrCodeInvalidURL, fmt.Sprintf("cannot parse source url: %s", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return domain.ErrCodeInvalidURL, fmt.Sprintf("unsupported url scheme %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return domain.ErrCodeInvalidURL, "source url has no host"
		}

	case domain.SourceKindUpload:
		if source.Filename == "" {
			return domain.ErrCodeInvalidInput, "source_filename is empty"
		}
		ext := strings.ToLower(filepath.Ext(source.Filename))
		if _, ok := supportedExtensions[ext]; !ok {
			return domain.ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported file extension %q", ext)
		}

	default:
		return domain.ErrCodeInvalidInput, fmt.Sprintf("unknown source kind %q", source.Kind)
	}

	return "", ""
}

func sourceFromJob(job *domain.Job) Source {
	return Source{
		Kind:     job.SourceKind,
		URL:      job.SourceURL,
		Filename: job.SourceFilename,
	}
}
