package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/repository"
	"github.com/spec-kit/grievance-desk/internal/service"
)

// Dependencies lists what the background jobs need.
type Dependencies struct {
	Notifications    *service.NotificationService
	OTPRepo          repository.OTPRepository
	OTPPurgeInterval time.Duration
	Logger           *zap.Logger
}

// Start subscribes the SMS sink to domain events and launches the OTP sweeper, which
// stops when ctx is cancelled. SMS delivery itself runs on the publishing goroutine.
func Start(ctx context.Context, deps Dependencies) {
	if deps.Notifications != nil {
		deps.Notifications.RegisterHandlers()
	}
	if deps.OTPRepo != nil && deps.OTPPurgeInterval > 0 {
		go NewOTPSweeper(deps.OTPRepo, deps.OTPPurgeInterval, deps.Logger).Run(ctx)
	}
}
