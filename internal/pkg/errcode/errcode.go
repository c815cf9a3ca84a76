package errcode

const (
	ErrUnknown            = "INTERNAL_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"
	ErrPendingApproval    = "PENDING_APPROVAL"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrInvalidCode        = "INVALID_OTP"
	ErrCodeExpired        = "OTP_EXPIRED"
	ErrSamePassword       = "SAME_PASSWORD"
	ErrPasswordMismatch   = "PASSWORD_MISMATCH"
	ErrTooMany            = "TOO_MANY_REQUESTS"
	ErrDependencyTimeout  = "DEPENDENCY_TIMEOUT"
	ErrDependencyFailure  = "DEPENDENCY_FAILURE"
)
