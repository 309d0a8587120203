package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	RequestOTP(ctx context.Context, in usecase.RequestInput) (*entity.Issued, error)
	VerifyOTP(ctx context.Context, in usecase.VerifyInput) (*entity.Success, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/otp/request", end.Request)
	r.POST("/api/v1/otp/verify", end.Verify)
}
