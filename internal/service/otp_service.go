package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/xxxsen/studyhub/internal/model"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
)

const (
	DefaultOTPExpiry = 10 * time.Minute

	otpMin   = 100000
	otpRange = 900000
)

var (
	ErrOTPNotFound = appErr.WithMessage(appErr.ErrNotFound, "OTP not found or expired")
	errOTPInvalid  = appErr.WithMessage(appErr.ErrInvalidCode, "Invalid OTP")
	errOTPExpired  = appErr.WithMessage(appErr.ErrCodeExpired, "OTP has expired")
)

type OTPStore interface {
	Create(ctx context.Context, otp *model.OTP) error
	DeleteByEmail(ctx context.Context, email string) error
	LatestByEmail(ctx context.Context, email string) (*model.OTP, error)
	Consume(ctx context.Context, id, codeHash string) error
}

// OTPService issues and verifies registration passcodes. Per email the
// only live record is the newest one; issuing drops the rest and a
// successful verify deletes the record it matched.
type OTPService struct {
	store   OTPStore
	clock   timeutil.Clock
	expiry  time.Duration
	timeout time.Duration
}

func NewOTPService(store OTPStore, clock timeutil.Clock, expiry, timeout time.Duration) *OTPService {
	if clock == nil {
		clock = timeutil.System
	}
	if expiry <= 0 {
		expiry = DefaultOTPExpiry
	}
	return &OTPService{store: store, clock: clock, expiry: expiry, timeout: timeout}
}

func (s *OTPService) Expiry() time.Duration {
	return s.expiry
}

// Issue replaces any outstanding code for email and returns the new one.
// Whether email may register is the caller's concern.
func (s *OTPService) Issue(ctx context.Context, email string) (string, error) {
	if err := callDependency(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.DeleteByEmail(ctx, email)
	}); err != nil {
		return "", fmt.Errorf("drop stale otp: %w", err)
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	item := &model.OTP{
		ID:       newID(),
		Email:    email,
		CodeHash: hashCode(code),
		Ctime:    s.clock.Now().UnixMilli(),
	}
	if err := callDependency(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.Create(ctx, item)
	}); err != nil {
		return "", fmt.Errorf("save otp: %w", err)
	}
	return code, nil
}

func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	var item *model.OTP
	err := callDependency(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		item, err = s.store.LatestByEmail(ctx, email)
		return err
	})
	if appErr.IsNotFound(err) {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}
	hash := hashCode(code)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(item.CodeHash)) != 1 {
		return errOTPInvalid
	}
	age := s.clock.Now().Sub(time.UnixMilli(item.Ctime))
	if age > s.expiry {
		return errOTPExpired
	}
	err = callDependency(ctx, s.timeout, func(ctx context.Context) error {
		return s.store.Consume(ctx, item.ID, hash)
	})
	if appErr.IsNotFound(err) {
		return ErrOTPNotFound
	}
	return err
}

// generateCode draws uniformly from [100000, 999999] using crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
