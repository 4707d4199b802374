package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// FetchError describes a failed retrieval: either a non-200 response or a
// transport failure.
type FetchError struct {
	StatusCode int
	Err        error
	Category   types.FailureCategory
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("report endpoint returned status %d: %v", e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("report endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("report request failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Classify returns the failure category of a fetch error. Errors that are
// not FetchErrors (local disk failures) are permanent.
func Classify(err error) types.FailureCategory {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return types.FailurePermanent
}

func classifyHTTPStatus(code int) types.FailureCategory {
	switch {
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return types.FailureTransient
	case code >= 400 && code < 500:
		return types.FailurePermanent
	case code == http.StatusOK:
		// 200 with an empty body: the report is not published yet.
		return types.FailurePermanent
	default:
		return types.FailureTransient
	}
}

func classifyTransport(ctx context.Context, err error) types.FailureCategory {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return types.FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return types.FailurePermanent
	}
	return types.FailureTransient
}
