package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studyhub/internal/middleware"
	"github.com/xxxsen/studyhub/internal/pkg/errcode"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
	"github.com/xxxsen/studyhub/internal/pkg/response"
	"github.com/xxxsen/studyhub/internal/service"
)

type errorMapping struct {
	kind    error
	status  int
	code    string
	message string
}

// Order matters: the first kind an error matches wins.
var errorMappings = []errorMapping{
	{appErr.ErrPasswordMismatch, http.StatusBadRequest, errcode.ErrPasswordMismatch, "Passwords do not match"},
	{appErr.ErrSamePassword, http.StatusBadRequest, errcode.ErrSamePassword, "New password must be different from old password"},
	{appErr.ErrInvalidCode, http.StatusBadRequest, errcode.ErrInvalidCode, "Invalid OTP"},
	{appErr.ErrCodeExpired, http.StatusBadRequest, errcode.ErrCodeExpired, "OTP has expired"},
	{appErr.ErrInvalid, http.StatusBadRequest, errcode.ErrValidation, "Validation failed"},
	{appErr.ErrInvalidCredentials, http.StatusUnauthorized, errcode.ErrInvalidCredentials, "Invalid email or password"},
	{appErr.ErrUnauthorized, http.StatusUnauthorized, errcode.ErrUnauthorized, "Unauthorized"},
	{appErr.ErrPendingApproval, http.StatusForbidden, errcode.ErrPendingApproval, "Your account is pending approval"},
	{appErr.ErrNotFound, http.StatusNotFound, errcode.ErrNotFound, "Not found"},
	{appErr.ErrConflict, http.StatusConflict, errcode.ErrConflict, "Conflict"},
	{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany, middleware.RateLimitMessage},
	{appErr.ErrDependencyTimeout, http.StatusGatewayTimeout, errcode.ErrDependencyTimeout, "Upstream service timed out"},
	{appErr.ErrDependencyFailure, http.StatusServiceUnavailable, errcode.ErrDependencyFailure, "Upstream service unavailable"},
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// errorCode is the errcode an error maps to, used as the metrics outcome.
func errorCode(err error) string {
	if err == nil {
		return "ok"
	}
	if m, ok := lookup(err); ok {
		return m.code
	}
	return errcode.ErrUnknown
}

func lookup(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m, true
		}
	}
	return errorMapping{}, false
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
	)
	var verr *appErr.ValidationError
	if errors.As(err, &verr) {
		response.ValidationError(c, http.StatusBadRequest, errcode.ErrValidation, "Validation failed", verr.Violations)
		return
	}
	m, ok := lookup(err)
	if !ok {
		logger.Error("request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, errcode.ErrUnknown, "internal error")
		return
	}
	if m.status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Error(err))
	}
	// OTP lookups that find nothing are a client input problem, not a
	// missing resource.
	if m.kind == appErr.ErrNotFound && errors.Is(err, service.ErrOTPNotFound) {
		m.status = http.StatusBadRequest
	}
	message := m.message
	if msg, ok := appErr.Message(err); ok {
		message = msg
	}
	response.Error(c, m.status, m.code, message)
}

var errMalformedBody = &appErr.ValidationError{Violations: []string{"request body must be valid JSON"}}
