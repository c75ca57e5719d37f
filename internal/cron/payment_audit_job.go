package cron

import (
	"context"
	"fmt"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

const defaultAuditLimit = 100

type eventLister interface {
	ListEvents(ctx context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error)
}

type PaymentAuditJobParams struct {
	Logger   *logger.Logger
	Webhooks eventLister
	Limit    int
}

// NewPaymentAuditJob surfaces payments that were captured but could not be
// matched to a wallet, so an operator can credit them by hand.
func NewPaymentAuditJob(params PaymentAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhook service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	return &paymentAuditJob{logg: params.Logger, webhooks: params.Webhooks, limit: limit}, nil
}

type paymentAuditJob struct {
	logg     *logger.Logger
	webhooks eventLister
	limit    int
}

func (j *paymentAuditJob) Name() string { return "payment-event-audit" }

func (j *paymentAuditJob) Run(ctx context.Context) error {
	events, err := j.webhooks.ListEvents(ctx, enums.PaymentEventStatusUnresolved, j.limit)
	if err != nil {
		return fmt.Errorf("list unresolved events: %w", err)
	}
	for _, event := range events {
		reason := ""
		if event.ProcessingError != nil {
			reason = *event.ProcessingError
		}
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"gateway_event_id": event.GatewayEventID,
			"event_type":       event.EventType,
			"amount":           event.Amount.String(),
			"currency":         event.Currency,
			"reason":           reason,
		})
		j.logg.Warn(logCtx, "unresolved gateway payment needs manual review")
	}
	j.logg.Info(j.logg.WithField(ctx, "count", len(events)), "payment event audit complete")
	return nil
}
