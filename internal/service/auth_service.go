package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studyhub/internal/model"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
	"github.com/xxxsen/studyhub/internal/pkg/jwt"
	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
	"github.com/xxxsen/studyhub/internal/validator"
)

const avatarURLFormat = "https://api.dicebear.com/5.x/initials/svg?seed=%s%%20%s"

var (
	errInvalidCredentials = appErr.WithMessage(appErr.ErrInvalidCredentials, "Invalid email or password")
	errPendingApproval    = appErr.WithMessage(appErr.ErrPendingApproval, "Your account is pending approval")
	errUserExists         = appErr.WithMessage(appErr.ErrConflict, "User already exists with this email")
	errAlreadyRegistered  = appErr.WithMessage(appErr.ErrConflict, "User already registered with this email")
	errPasswordMismatch   = appErr.WithMessage(appErr.ErrPasswordMismatch, "Passwords do not match")
	errNewPasswordDiffers = appErr.WithMessage(appErr.ErrPasswordMismatch, "New passwords do not match")
	errSamePassword       = appErr.WithMessage(appErr.ErrSamePassword, "New password must be different from old password")
	errUserNotFound       = appErr.WithMessage(appErr.ErrNotFound, "User not found")
	errWrongOldPassword   = appErr.WithMessage(appErr.ErrInvalidCredentials, "Current password is incorrect")
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error
}

type ProfileStore interface {
	Create(ctx context.Context, profile *model.Profile) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, digest string) (bool, error)
}

type TokenIssuer interface {
	Issue(sub jwt.Subject) (string, error)
}

type AuthDeps struct {
	Users    UserStore
	Profiles ProfileStore
	OTP      *OTPService
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Mailer   EmailSender
	Clock    timeutil.Clock
	// Timeout bounds each record-store and mail call.
	Timeout time.Duration
}

// AuthService runs the register, login, request-otp and change-password
// flows. Steps inside a flow are sequential and the store is not
// transactional: a failure after a write surfaces to the caller, and earlier
// writes stay in place.
type AuthService struct {
	users    UserStore
	profiles ProfileStore
	otp      *OTPService
	hasher   PasswordHasher
	tokens   TokenIssuer
	mailer   EmailSender
	clock    timeutil.Clock
	timeout  time.Duration

	dummyMu     sync.Mutex
	dummyDigest string
}

func NewAuthService(deps AuthDeps) *AuthService {
	clock := deps.Clock
	if clock == nil {
		clock = timeutil.System
	}
	s := &AuthService{
		users:    deps.Users,
		profiles: deps.Profiles,
		otp:      deps.OTP,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		clock:    clock,
		timeout:  deps.Timeout,
	}
	s.dummyHash()
	return s
}

func (s *AuthService) Register(ctx context.Context, in *validator.Signup) (*model.User, string, error) {
	if in.Password != in.ConfirmPassword {
		return nil, "", errPasswordMismatch
	}
	exists, err := s.emailTaken(ctx, in.Email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", errUserExists
	}
	if err := s.otp.Verify(ctx, in.Email, in.OTP); err != nil {
		return nil, "", err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now().Unix()
	profile := &model.Profile{ID: newID(), Ctime: now, Mtime: now}
	if in.ContactNumber != "" {
		contact := in.ContactNumber
		profile.ContactNumber = &contact
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.profiles.Create(ctx, profile)
	}); err != nil {
		return nil, "", fmt.Errorf("create profile: %w", err)
	}

	user := &model.User{
		ID:            newID(),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		PasswordHash:  hash,
		AccountType:   in.AccountType,
		Approved:      !in.AccountType.NeedsApproval(),
		ProfileID:     profile.ID,
		ContactNumber: in.ContactNumber,
		Image:         fmt.Sprintf(avatarURLFormat, url.PathEscape(in.FirstName), url.PathEscape(in.LastName)),
		Ctime:         now,
		Mtime:         now,
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	}); err != nil {
		logutil.GetLogger(ctx).Warn("user insert failed after profile insert, profile left orphaned",
			zap.String("profile_id", profile.ID),
			zap.Error(err),
		)
		if appErr.IsConflict(err) {
			return nil, "", errUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user.Public(), token, nil
}

func (s *AuthService) Login(ctx context.Context, in *validator.Login) (*model.User, string, error) {
	var user *model.User
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByEmail(ctx, in.Email)
		return err
	})
	if appErr.IsNotFound(err) {
		// Burn a comparable amount of work so a missing account does not
		// answer faster than a wrong password.
		_, _ = s.hasher.Verify(ctx, in.Password, s.dummyHash())
		return nil, "", errInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", errInvalidCredentials
	}
	if !user.Approved {
		return nil, "", errPendingApproval
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user.Public(), token, nil
}

// RequestOTP mails a fresh registration code to an address that has no
// account yet. Delivery failure fails the request.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	exists, err := s.emailTaken(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return errAlreadyRegistered
	}
	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.mailer.Send(ctx, email, otpMailSubject, otpMailBody(code, s.otp.Expiry()))
	}); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

// ChangePassword replaces the password of an already authenticated user.
// The notification mail is best effort.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in *validator.PasswordChange) error {
	if in.NewPassword != in.ConfirmPassword {
		return errNewPasswordDiffers
	}
	if in.NewPassword == in.OldPassword {
		return errSamePassword
	}
	var user *model.User
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, userID)
		return err
	})
	if appErr.IsNotFound(err) {
		return errUserNotFound
	}
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(ctx, in.OldPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return errWrongOldPassword
	}
	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.users.UpdatePassword(ctx, user.ID, hash, s.clock.Now().Unix())
	})
	if appErr.IsNotFound(err) {
		return errUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	bestEffort(ctx, "password_updated_mail", s.timeout, func(ctx context.Context) error {
		return s.mailer.Send(ctx, user.Email, passwordUpdatedMailSubject,
			passwordUpdatedMailBody(user.Email, user.FirstName+" "+user.LastName))
	})
	return nil
}

func (s *AuthService) emailTaken(ctx context.Context, email string) (bool, error) {
	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.users.GetByEmail(ctx, email)
		return err
	})
	if appErr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) issueToken(user *model.User) (string, error) {
	token, err := s.tokens.Issue(jwt.Subject{
		ID:          user.ID,
		Email:       user.Email,
		AccountType: string(user.AccountType),
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *AuthService) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return callDependency(ctx, s.timeout, fn)
}

// dummyHash is a real digest of a random secret, used to make unknown-email
// logins pay for a bcrypt compare. It is computed outside any request context
// and retried until it succeeds.
func (s *AuthService) dummyHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyDigest == "" && s.hasher != nil {
		digest, err := s.hasher.Hash(context.Background(), newID())
		if err != nil {
			logutil.GetLogger(context.Background()).Warn("compute login dummy digest failed", zap.Error(err))
			return ""
		}
		s.dummyDigest = digest
	}
	return s.dummyDigest
}
