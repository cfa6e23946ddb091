// Package stage implements the pipeline stages. Each handler takes the JSON
// event the orchestrator passes to the function and returns the JSON it
// hands to the next state.
package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/smithy-go"
)

// Stage names, as they appear in the stage log field.
const (
	Fetch      = "fetch"
	Check      = "check"
	Summarize  = "summarize"
	Publish    = "publish"
	Record     = "record"
	ErrorCheck = "error-check"
	Cleanup    = "cleanup"
)

// ItemEvent is the input of every per-item stage.
type ItemEvent = types.ItemIdentifier

// ErrorKind classifies err for the error_kind log field.
func ErrorKind(err error) string {
	var (
		validationErr *types.ValidationError
		partialErr    *types.PartialWriteError
		storageErr    *types.StorageError
		upstreamErr   *types.UpstreamError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &validationErr):
		return "validation"
	case types.IsNotFound(err):
		return "not_found"
	case errors.As(err, &partialErr):
		return "partial_write"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &upstreamErr):
		return "upstream"
	default:
		return "internal"
	}
}

// errorAttrs returns the log attributes describing err, including the AWS
// error code when an SDK call failed.
func errorAttrs(err error) []any {
	attrs := []any{"error", err.Error(), "error_kind", ErrorKind(err)}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, "aws_error_code", apiErr.ErrorCode())
	}

	return attrs
}

// track logs the start of a stage and returns a function that logs its end.
func track(ctx context.Context, logger *slog.Logger, name string, attrs ...any) (*slog.Logger, func(err error)) {
	logger = logger.With(append([]any{"stage", name}, attrs...)...)
	start := time.Now()

	logger.InfoContext(ctx, "Stage started")

	return logger, func(err error) {
		elapsed := slog.Duration("elapsed", time.Since(start))

		if err != nil {
			logger.ErrorContext(ctx, "Stage failed", append(errorAttrs(err), elapsed)...)
			return
		}

		logger.InfoContext(ctx, "Stage completed", elapsed)
	}
}

func itemAttrs(id types.ItemIdentifier) []any {
	return []any{"execution_id", id.ExecutionID, "guid", id.GUID}
}
