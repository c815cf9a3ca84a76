package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
)

const defaultDependencyTimeout = 5 * time.Second

var domainErrors = []error{
	appErr.ErrNotFound,
	appErr.ErrConflict,
	appErr.ErrInvalid,
	appErr.ErrUnauthorized,
	appErr.ErrTooMany,
	appErr.ErrDependencyTimeout,
	appErr.ErrDependencyFailure,
}

// callDependency bounds fn by timeout. Domain errors pass through; a missed
// deadline becomes ErrDependencyTimeout and anything else ErrDependencyFailure.
func callDependency(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = defaultDependencyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return classify(fn(ctx))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", appErr.ErrDependencyTimeout, err)
	}
	for _, kind := range domainErrors {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", appErr.ErrDependencyFailure, err)
}

// bestEffort runs a non-critical side effect. A failure is logged and
// dropped; the caller's outcome does not depend on it.
func bestEffort(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) {
	if err := callDependency(ctx, timeout, fn); err != nil {
		logutil.GetLogger(ctx).Warn("side effect failed",
			zap.String("side_effect", name),
			zap.Error(err),
		)
	}
}
