// Package validator checks auth payloads. Each function collects every
// violated rule before returning, so clients can fix a form in one round trip.
package validator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"

	"github.com/xxxsen/studyhub/internal/model"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
)

const (
	nameMaxLen        = 50
	passwordMinLen    = 8
	passwordMaxLen    = 128
	otpLen            = 6
	PasswordSymbolSet = "@$!%*?&"

	msgPasswordTooShort    = "password must be at least 8 characters long"
	msgPasswordTooLong     = "password must not exceed 128 characters"
	msgPasswordComposition = "password must contain at least one uppercase letter, one lowercase letter, one number, and one special character (@$!%*?&)"
)

var (
	contactPattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	otpPattern     = regexp.MustCompile(`^\d+$`)
	checker        = playground.New()
)

type SignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AccountType     string `json:"accountType"`
	ContactNumber   string `json:"contactNumber"`
	OTP             string `json:"otp"`
}

type Signup struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	AccountType     model.AccountType
	ContactNumber   string
	OTP             string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Login struct {
	Email    string
	Password string
}

type OTPRequest struct {
	Email string `json:"email"`
}

type PasswordChangeRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type PasswordChange struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

type violations []string

func (v *violations) add(msg string) {
	*v = append(*v, msg)
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return &appErr.ValidationError{Violations: v}
}

func ValidateSignup(req SignupRequest) (*Signup, error) {
	var errs violations
	out := &Signup{
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Email:           normalizeEmail(req.Email),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AccountType:     model.AccountStudent,
		ContactNumber:   strings.TrimSpace(req.ContactNumber),
		OTP:             strings.TrimSpace(req.OTP),
	}
	checkName(&errs, "firstName", out.FirstName)
	checkName(&errs, "lastName", out.LastName)
	checkEmail(&errs, out.Email)
	checkPassword(&errs, "password", out.Password)
	if out.ConfirmPassword == "" {
		errs.add("confirmPassword is required")
	}
	if at := strings.TrimSpace(req.AccountType); at != "" {
		out.AccountType = model.AccountType(at)
		if !out.AccountType.Valid() {
			errs.add("accountType must be one of [Student, Instructor, Admin]")
		}
	}
	if out.ContactNumber != "" && !contactPattern.MatchString(out.ContactNumber) {
		errs.add("contactNumber must be a valid international phone number")
	}
	switch {
	case out.OTP == "":
		errs.add("otp is required")
	case len(out.OTP) != otpLen:
		errs.add("otp must be 6 characters long")
	case !otpPattern.MatchString(out.OTP):
		errs.add("otp must contain only digits")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func ValidateLogin(req LoginRequest) (*Login, error) {
	var errs violations
	out := &Login{Email: normalizeEmail(req.Email), Password: req.Password}
	checkEmail(&errs, out.Email)
	if out.Password == "" {
		errs.add("password is required")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func ValidateOTPRequest(req OTPRequest) (string, error) {
	var errs violations
	email := normalizeEmail(req.Email)
	checkEmail(&errs, email)
	if err := errs.err(); err != nil {
		return "", err
	}
	return email, nil
}

func ValidatePasswordChange(req PasswordChangeRequest) (*PasswordChange, error) {
	var errs violations
	if req.OldPassword == "" {
		errs.add("oldPassword is required")
	}
	checkPassword(&errs, "newPassword", req.NewPassword)
	if req.ConfirmPassword == "" {
		errs.add("confirmPassword is required")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return &PasswordChange{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkName(errs *violations, field, value string) {
	if value == "" {
		errs.add(field + " is required")
		return
	}
	if utf8.RuneCountInString(value) > nameMaxLen {
		errs.add(field + " must not exceed 50 characters")
	}
}

func checkEmail(errs *violations, email string) {
	if email == "" {
		errs.add("email is required")
		return
	}
	if checker.Var(email, "email") != nil {
		errs.add("email must be a valid email")
	}
}

func checkPassword(errs *violations, field, pw string) {
	if pw == "" {
		errs.add(field + " is required")
		return
	}
	n := utf8.RuneCountInString(pw)
	if n < passwordMinLen {
		errs.add(strings.Replace(msgPasswordTooShort, "password", field, 1))
	}
	if n > passwordMaxLen {
		errs.add(strings.Replace(msgPasswordTooLong, "password", field, 1))
	}
	if !composedWell(pw) {
		errs.add(strings.Replace(msgPasswordComposition, "password", field, 1))
	}
}

func composedWell(pw string) bool {
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			digit = true
		case strings.ContainsRune(PasswordSymbolSet, r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
