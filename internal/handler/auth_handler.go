package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studyhub/internal/metrics"
	"github.com/xxxsen/studyhub/internal/middleware"
	"github.com/xxxsen/studyhub/internal/model"
	"github.com/xxxsen/studyhub/internal/pkg/response"
	"github.com/xxxsen/studyhub/internal/validator"
)

const (
	flowSignup         = "signup"
	flowLogin          = "login"
	flowSendOTP        = "send_otp"
	flowChangePassword = "change_password"
	flowLogout         = "logout"
)

type AuthFlows interface {
	Register(ctx context.Context, in *validator.Signup) (*model.User, string, error)
	Login(ctx context.Context, in *validator.Login) (*model.User, string, error)
	RequestOTP(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, userID string, in *validator.PasswordChange) error
}

// CookieOptions shape the session cookie. Its lifetime is independent of
// the token's own expiry.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	auth     AuthFlows
	cookie   CookieOptions
	recorder metrics.Recorder
}

func NewAuthHandler(auth AuthFlows, cookie CookieOptions, recorder metrics.Recorder) *AuthHandler {
	if recorder == nil {
		recorder = metrics.Nop
	}
	return &AuthHandler{auth: auth, cookie: cookie, recorder: recorder}
}

type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req validator.SignupRequest
	if !h.bind(c, flowSignup, &req) {
		return
	}
	in, err := validator.ValidateSignup(req)
	if err != nil {
		h.fail(c, flowSignup, err)
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, flowSignup, err)
		return
	}
	h.recorder.RecordAuth(flowSignup, errorCode(nil))
	response.Success(c, http.StatusCreated, "User registered successfully", sessionResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req validator.LoginRequest
	if !h.bind(c, flowLogin, &req) {
		return
	}
	in, err := validator.ValidateLogin(req)
	if err != nil {
		h.fail(c, flowLogin, err)
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), in)
	if err != nil {
		h.fail(c, flowLogin, err)
		return
	}
	h.setSessionCookie(c, token, int(h.cookie.TTL/time.Second))
	h.recorder.RecordAuth(flowLogin, errorCode(nil))
	response.Success(c, http.StatusOK, "Login successful", sessionResponse{User: user, Token: token})
}

func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req validator.OTPRequest
	if !h.bind(c, flowSendOTP, &req) {
		return
	}
	email, err := validator.ValidateOTPRequest(req)
	if err != nil {
		h.fail(c, flowSendOTP, err)
		return
	}
	if err := h.auth.RequestOTP(c.Request.Context(), email); err != nil {
		h.fail(c, flowSendOTP, err)
		return
	}
	h.recorder.RecordAuth(flowSendOTP, errorCode(nil))
	response.Success(c, http.StatusOK, "OTP sent successfully to your email", nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req validator.PasswordChangeRequest
	if !h.bind(c, flowChangePassword, &req) {
		return
	}
	in, err := validator.ValidatePasswordChange(req)
	if err != nil {
		h.fail(c, flowChangePassword, err)
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), getUserID(c), in); err != nil {
		h.fail(c, flowChangePassword, err)
		return
	}
	h.recorder.RecordAuth(flowChangePassword, errorCode(nil))
	response.Success(c, http.StatusOK, "Password updated successfully", nil)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	h.recorder.RecordAuth(flowLogout, errorCode(nil))
	response.Success(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, value, maxAge, "/", "", h.cookie.Secure, true)
}

// bind decodes the JSON body; a malformed body is reported like any other
// validation failure.
func (h *AuthHandler) bind(c *gin.Context, flow string, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, flow, errMalformedBody)
		return false
	}
	return true
}

func (h *AuthHandler) fail(c *gin.Context, flow string, err error) {
	h.recorder.RecordAuth(flow, errorCode(err))
	handleError(c, err)
}
