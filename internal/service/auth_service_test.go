package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/studyhub/internal/model"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
	"github.com/xxxsen/studyhub/internal/pkg/jwt"
	"github.com/xxxsen/studyhub/internal/pkg/password"
	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
	"github.com/xxxsen/studyhub/internal/validator"
)

var codePattern = regexp.MustCompile(`\d{6}`)

type authFixture struct {
	svc      *AuthService
	users    *memUserStore
	profiles *memProfileStore
	otps     *memOTPStore
	mailer   *fakeMailer
	clock    *timeutil.FixedClock
	tokens   *jwt.Issuer
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:    newMemUserStore(),
		profiles: &memProfileStore{},
		otps:     &memOTPStore{},
		mailer:   &fakeMailer{},
		clock:    timeutil.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.tokens = jwt.NewIssuer([]byte("test-secret"), 24*time.Hour, f.clock)
	f.svc = NewAuthService(AuthDeps{
		Users:    f.users,
		Profiles: f.profiles,
		OTP:      NewOTPService(f.otps, f.clock, 10*time.Minute, time.Second),
		Hasher:   password.NewHasher(bcrypt.MinCost, 4),
		Tokens:   f.tokens,
		Mailer:   f.mailer,
		Clock:    f.clock,
		Timeout:  time.Second,
	})
	return f
}

func (f *authFixture) requestCode(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.RequestOTP(context.Background(), email))
	mail := f.mailer.last()
	require.Equal(t, email, mail.to)
	code := codePattern.FindString(mail.body)
	require.NotEmpty(t, code)
	return code
}

func (f *authFixture) register(t *testing.T, email string, accountType model.AccountType) *model.User {
	t.Helper()
	code := f.requestCode(t, email)
	user, _, err := f.svc.Register(context.Background(), &validator.Signup{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Password:        "Valid123!",
		ConfirmPassword: "Valid123!",
		AccountType:     accountType,
		OTP:             code,
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesUserProfileAndToken(t *testing.T) {
	f := newAuthFixture()
	code := f.requestCode(t, "ada@example.com")
	require.Contains(t, f.mailer.last().body, "Valid for 10 minutes")

	user, token, err := f.svc.Register(context.Background(), &validator.Signup{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Password:        "Valid123!",
		ConfirmPassword: "Valid123!",
		AccountType:     model.AccountStudent,
		ContactNumber:   "+14155552671",
		OTP:             code,
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.users.count())
	require.Equal(t, 1, f.profiles.count())
	require.Empty(t, user.PasswordHash)
	require.True(t, user.Approved)
	require.Equal(t, "https://api.dicebear.com/5.x/initials/svg?seed=Ada%20Lovelace", user.Image)

	stored, err := f.users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "Valid123!", stored.PasswordHash)
	require.NotEmpty(t, stored.PasswordHash)

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "password")
	require.NotContains(t, string(raw), stored.PasswordHash)

	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, "Student", claims.AccountType)
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	_, _, err := f.svc.Register(ctx, &validator.Signup{Email: "x@example.com", Password: "Valid123!", ConfirmPassword: "Other123!"})
	require.ErrorIs(t, err, appErr.ErrPasswordMismatch)

	_, _, err = f.svc.Register(ctx, &validator.Signup{
		FirstName: "A", LastName: "B", Email: "x@example.com",
		Password: "Valid123!", ConfirmPassword: "Valid123!", AccountType: model.AccountStudent, OTP: "123456",
	})
	require.ErrorIs(t, err, appErr.ErrNotFound, "no otp was ever issued")

	f.register(t, "taken@example.com", model.AccountStudent)
	_, _, err = f.svc.Register(ctx, &validator.Signup{
		FirstName: "A", LastName: "B", Email: "taken@example.com",
		Password: "Valid123!", ConfirmPassword: "Valid123!", AccountType: model.AccountStudent, OTP: "123456",
	})
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.Equal(t, 1, f.users.count())
}

func TestRegisterExpiredOTP(t *testing.T) {
	f := newAuthFixture()
	code := f.requestCode(t, "late@example.com")
	f.clock.Advance(11 * time.Minute)
	_, _, err := f.svc.Register(context.Background(), &validator.Signup{
		FirstName: "A", LastName: "B", Email: "late@example.com",
		Password: "Valid123!", ConfirmPassword: "Valid123!", AccountType: model.AccountStudent, OTP: code,
	})
	require.ErrorIs(t, err, appErr.ErrCodeExpired)
	require.Zero(t, f.users.count())
	require.Zero(t, f.profiles.count())
}

func TestInstructorNeedsApproval(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	instructor := f.register(t, "teach@example.com", model.AccountInstructor)
	require.False(t, instructor.Approved)
	student := f.register(t, "learn@example.com", model.AccountStudent)
	require.True(t, student.Approved)

	_, _, err := f.svc.Login(ctx, &validator.Login{Email: "teach@example.com", Password: "Valid123!"})
	require.ErrorIs(t, err, appErr.ErrPendingApproval)

	user, token, err := f.svc.Login(ctx, &validator.Login{Email: "learn@example.com", Password: "Valid123!"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Empty(t, user.PasswordHash)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.register(t, "ada@example.com", model.AccountStudent)

	_, _, wrongPassword := f.svc.Login(ctx, &validator.Login{Email: "ada@example.com", Password: "Wrong123!"})
	_, _, noAccount := f.svc.Login(ctx, &validator.Login{Email: "ghost@example.com", Password: "Valid123!"})
	require.ErrorIs(t, wrongPassword, appErr.ErrInvalidCredentials)
	require.ErrorIs(t, noAccount, appErr.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), noAccount.Error())
}

func TestRequestOTP(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.register(t, "ada@example.com", model.AccountStudent)
	sent := f.mailer.count()

	err := f.svc.RequestOTP(ctx, "ada@example.com")
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.Equal(t, sent, f.mailer.count())

	f.mailer.fail = true
	err = f.svc.RequestOTP(ctx, "new@example.com")
	require.ErrorIs(t, err, appErr.ErrDependencyFailure)
}

func TestDependencyTimeout(t *testing.T) {
	f := newAuthFixture()
	f.users.block = true
	f.svc.timeout = 20 * time.Millisecond

	err := f.svc.RequestOTP(context.Background(), "slow@example.com")
	require.ErrorIs(t, err, appErr.ErrDependencyTimeout)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	user := f.register(t, "ada@example.com", model.AccountStudent)

	err := f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: "Valid123!", NewPassword: "Valid123!", ConfirmPassword: "Valid123!",
	})
	require.ErrorIs(t, err, appErr.ErrSamePassword)

	err = f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: "Valid123!", NewPassword: "Newer456$", ConfirmPassword: "Newer456%",
	})
	require.ErrorIs(t, err, appErr.ErrPasswordMismatch)

	err = f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: "Wrong123!", NewPassword: "Newer456$", ConfirmPassword: "Newer456$",
	})
	require.ErrorIs(t, err, appErr.ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, "missing", &validator.PasswordChange{
		OldPassword: "Valid123!", NewPassword: "Newer456$", ConfirmPassword: "Newer456$",
	})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: "Valid123!", NewPassword: "Newer456$", ConfirmPassword: "Newer456$",
	}))
	require.Equal(t, passwordUpdatedMailSubject, f.mailer.last().subject)

	_, _, err = f.svc.Login(ctx, &validator.Login{Email: "ada@example.com", Password: "Newer456$"})
	require.NoError(t, err)
}

func TestChangePasswordNotificationFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	user := f.register(t, "ada@example.com", model.AccountStudent)

	f.mailer.fail = true
	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: "Valid123!", NewPassword: "Newer456$", ConfirmPassword: "Newer456$",
	}))
	_, _, err := f.svc.Login(ctx, &validator.Login{Email: "ada@example.com", Password: "Newer456$"})
	require.NoError(t, err)
}

func signupFor(email, code string) *validator.Signup {
	return &validator.Signup{
		FirstName: "Ada", LastName: "Lovelace", Email: email,
		Password: "Valid123!", ConfirmPassword: "Valid123!", AccountType: model.AccountStudent, OTP: code,
	}
}

func TestRegisterAndLoginWithLongPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	long := "Valid123!" + strings.Repeat("a", 91)
	in, err := validator.ValidateSignup(validator.SignupRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "long@example.com",
		Password: long, ConfirmPassword: long, OTP: f.requestCode(t, "long@example.com"),
	})
	require.NoError(t, err)

	_, _, err = f.svc.Register(ctx, in)
	require.NoError(t, err)

	_, token, err := f.svc.Login(ctx, &validator.Login{Email: "long@example.com", Password: long})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, _, err = f.svc.Login(ctx, &validator.Login{Email: "long@example.com", Password: long[:72]})
	require.ErrorIs(t, err, appErr.ErrInvalidCredentials)

	user, err := f.users.GetByEmail(ctx, "long@example.com")
	require.NoError(t, err)
	newLong := "Newer456$" + strings.Repeat("b", 100)
	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, &validator.PasswordChange{
		OldPassword: long, NewPassword: newLong, ConfirmPassword: newLong,
	}))
	_, _, err = f.svc.Login(ctx, &validator.Login{Email: "long@example.com", Password: newLong})
	require.NoError(t, err)
}

func TestRegisterUserInsertFailureLeavesProfile(t *testing.T) {
	f := newAuthFixture()
	code := f.requestCode(t, "ada@example.com")
	f.users.createErr = errors.New("pq: connection reset by peer")

	_, token, err := f.svc.Register(context.Background(), signupFor("ada@example.com", code))
	require.ErrorIs(t, err, appErr.ErrDependencyFailure)
	require.Contains(t, err.Error(), "connection reset")
	require.Empty(t, token)
	require.Equal(t, 1, f.profiles.count(), "profile write is not rolled back")
	require.Zero(t, f.users.count())
	require.Zero(t, f.otps.count(), "the code was consumed before the failing write")
}

func TestRegisterUniqueViolationOnInsert(t *testing.T) {
	f := newAuthFixture()
	code := f.requestCode(t, "ada@example.com")
	f.users.createErr = fmt.Errorf("insert user: %w", appErr.ErrConflict)

	_, _, err := f.svc.Register(context.Background(), signupFor("ada@example.com", code))
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.Equal(t, "User already exists with this email", err.Error())
	require.Equal(t, 1, f.profiles.count())
}

func TestRegisterTokenFailureAfterUserCreated(t *testing.T) {
	f := newAuthFixture()
	code := f.requestCode(t, "ada@example.com")
	signErr := errors.New("signing key unavailable")
	f.svc.tokens = failingIssuer{err: signErr}

	user, token, err := f.svc.Register(context.Background(), signupFor("ada@example.com", code))
	require.ErrorIs(t, err, signErr)
	require.Nil(t, user)
	require.Empty(t, token)
	require.Equal(t, 1, f.users.count(), "user write is not rolled back")
	require.Equal(t, 1, f.profiles.count())
}

func TestLoginUnknownEmailAlwaysComparesRealDigest(t *testing.T) {
	hasher := &flakyHasher{PasswordHasher: password.NewHasher(bcrypt.MinCost, 1), failures: 1}
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewAuthService(AuthDeps{
		Users:    newMemUserStore(),
		Profiles: &memProfileStore{},
		OTP:      NewOTPService(&memOTPStore{}, clock, 10*time.Minute, time.Second),
		Hasher:   hasher,
		Tokens:   jwt.NewIssuer([]byte("test-secret"), time.Hour, clock),
		Mailer:   &fakeMailer{},
		Clock:    clock,
		Timeout:  time.Second,
	})
	require.Empty(t, svc.dummyDigest, "construction-time hash failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.Login(context.Background(), &validator.Login{Email: "ghost@example.com", Password: "Valid123!"})
	require.ErrorIs(t, err, appErr.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, &validator.Login{Email: "ghost@example.com", Password: "Valid123!"})
	require.Error(t, err)

	require.NotEmpty(t, hasher.verified)
	for _, digest := range hasher.verified {
		require.True(t, strings.HasPrefix(digest, "$2a$"), "got %q", digest)
	}
}
