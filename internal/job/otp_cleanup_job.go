package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
)

type ExpiredOTPDeleter interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// OTPCleanupJob purges codes that can no longer verify. Verification
// already rejects them; this only keeps the table small.
type OTPCleanupJob struct {
	store  ExpiredOTPDeleter
	expiry time.Duration
	clock  timeutil.Clock
}

func NewOTPCleanupJob(store ExpiredOTPDeleter, expiry time.Duration, clock timeutil.Clock) *OTPCleanupJob {
	if clock == nil {
		clock = timeutil.System
	}
	return &OTPCleanupJob{store: store, expiry: expiry, clock: clock}
}

func (j *OTPCleanupJob) Name() string {
	return "otp_cleanup"
}

func (j *OTPCleanupJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().Add(-j.expiry).UnixMilli()
	n, err := j.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("expired otps purged", zap.Int64("count", n))
	}
	return nil
}
