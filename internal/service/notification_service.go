package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/observability"
	"github.com/spec-kit/grievance-desk/internal/sms"
)

// NotificationService turns domain events into SMS messages. Delivery failures are
// logged and counted but never returned to the publisher.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     sms.Sender
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SMSConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sender sms.Sender, logger *zap.Logger, metrics *observability.Metrics, cfg config.SMSConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventUserWelcomed, n.handleUserWelcomed)
	n.dispatcher.Subscribe(events.EventOTPRequested, n.handleOTPRequested)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	if strings.TrimSpace(payload.Phone) == "" {
		n.logger.Warn("ticket sms skipped: no phone available",
			zap.Int64("ticket_id", event.TicketID),
			zap.String("ticket_number", payload.TicketNumber))
		return nil
	}
	n.send(ctx, "ticket_created", sms.Message{
		To:         payload.Phone,
		TemplateID: n.cfg.TicketCreatedTemplateID,
		Text:       sms.TicketCreatedText(payload.TicketNumber),
	}, zap.Int64("ticket_id", event.TicketID))
	return nil
}

func (n *NotificationService) handleUserWelcomed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserWelcomedPayload)
	if !ok {
		return nil
	}
	if strings.TrimSpace(payload.Phone) == "" {
		n.logger.Warn("welcome sms skipped: no phone available", zap.Int64("user_id", payload.UserID))
		return nil
	}
	n.send(ctx, "welcome", sms.Message{
		To:         payload.Phone,
		TemplateID: n.cfg.WelcomeTemplateID,
		Text:       sms.WelcomeText(payload.Phone),
	}, zap.Int64("user_id", payload.UserID))
	return nil
}

func (n *NotificationService) handleOTPRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OTPRequestedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, "otp", sms.Message{
		To:         payload.Mobile,
		TemplateID: n.cfg.OTPTemplateID,
		Text:       sms.OTPText(payload.Code),
	}, zap.String("mobile", payload.Mobile))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) send(ctx context.Context, template string, msg sms.Message, fields ...zap.Field) {
	if n.sender == nil {
		return
	}
	err := n.sender.Send(ctx, msg)
	n.metrics.RecordNotification(template, err)
	if err != nil {
		n.logger.Error("sms dispatch failed", append(fields, zap.String("template", template), zap.Error(err))...)
		return
	}
	n.logger.Debug("sms dispatched", append(fields, zap.String("template", template))...)
}
