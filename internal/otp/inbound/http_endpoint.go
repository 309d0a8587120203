package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HeaderIdempotencyKey lets a client retry an OTP request without issuing twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// HTTPEndpoint exposes the passcode issuance and verification handlers.
type HTTPEndpoint struct {
	uc uc
}

// Request issues a passcode and queues its delivery.
// @Summary Request OTP
// @Description Issues a one-time passcode for the identifier and hands it to the delivery queue. Repeat calls within the cooldown or above the hourly quota are throttled.
// @Tags OTP
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first response for 24h instead of issuing again"
// @Param request body RequestOTPRequest true "OTP request payload"
// @Success 202 {object} router.successResponse{data=RequestOTPResponse} "OTP issued"
// @Failure 400 {object} router.errorResponse "Invalid identifier or request body"
// @Failure 409 {object} router.errorResponse "Same Idempotency-Key still in progress"
// @Failure 429 {object} router.errorResponse "Throttled, see Retry-After"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/request [post]
func (h *HTTPEndpoint) Request(r *router.Request) (any, error) {
	var req RequestOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	issued, err := h.uc.RequestOTP(r.Context(), usecase.RequestInput{
		Channel:        req.Channel,
		Identifier:     req.Identifier,
		Purpose:        req.Purpose,
		UserID:         req.UserID,
		Context:        req.Context,
		IPAddress:      r.ClientIP(),
		UserAgent:      r.UserAgent(),
		IdempotencyKey: r.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		return nil, err
	}

	return RequestOTPResponse{
		EventID:         issued.EventID,
		Channel:         issued.Channel.String(),
		Identifier:      issued.Identifier,
		ExpiresAt:       issued.ExpiresAt,
		CooldownSeconds: issued.CooldownSeconds,
	}, nil
}

// Verify checks a submitted passcode.
// @Summary Verify OTP
// @Description Verifies the passcode for the identifier. A code succeeds at most once.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "OTP verification payload"
// @Success 200 {object} router.successResponse{data=VerifyOTPResponse} "OTP verified"
// @Failure 400 {object} router.errorResponse "Invalid identifier or request body"
// @Failure 401 {object} router.errorResponse "Incorrect code"
// @Failure 404 {object} router.errorResponse "No live OTP for the identifier"
// @Failure 410 {object} router.errorResponse "OTP expired"
// @Failure 429 {object} router.errorResponse "Too many incorrect attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	success, err := h.uc.VerifyOTP(r.Context(), usecase.VerifyInput{
		Channel:    req.Channel,
		Identifier: req.Identifier,
		Purpose:    req.Purpose,
		UserID:     req.UserID,
		Code:       req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyOTPResponse{
		EventID:    success.EventID,
		Channel:    success.Channel.String(),
		Identifier: success.Identifier,
		Purpose:    success.Purpose.String(),
		UserID:     success.UserID,
		Currency:   success.Currency,
	}, nil
}
