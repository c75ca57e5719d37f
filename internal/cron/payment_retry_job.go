package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

const (
	defaultRetryMaxAttempts = 5
	defaultRetryBatch       = 50
)

type eventReprocessor interface {
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.ExternalPaymentEvent, error)
	Reprocess(ctx context.Context, gatewayEventID string) (*stripewebhook.Outcome, error)
}

type PaymentRetryJobParams struct {
	Logger      *logger.Logger
	Webhooks    eventReprocessor
	MaxAttempts int
	BatchSize   int
}

// NewPaymentRetryJob re-drives failed gateway events that still have attempts left.
func NewPaymentRetryJob(params PaymentRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhook service required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMaxAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetryBatch
	}
	return &paymentRetryJob{
		logg:        params.Logger,
		webhooks:    params.Webhooks,
		maxAttempts: maxAttempts,
		batch:       batch,
	}, nil
}

type paymentRetryJob struct {
	logg        *logger.Logger
	webhooks    eventReprocessor
	maxAttempts int
	batch       int
}

func (j *paymentRetryJob) Name() string { return "payment-event-retry" }

func (j *paymentRetryJob) Run(ctx context.Context) error {
	events, err := j.webhooks.ListRetryable(ctx, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("list retryable events: %w", err)
	}

	var errs error
	recovered, stillFailed := 0, 0
	for _, event := range events {
		outcome, err := j.webhooks.Reprocess(ctx, event.GatewayEventID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reprocess %s: %w", event.GatewayEventID, err))
			continue
		}
		if outcome.Status == enums.PaymentEventStatusFailed {
			stillFailed++
			continue
		}
		recovered++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates":   len(events),
		"recovered":    recovered,
		"still_failed": stillFailed,
		"max_attempts": j.maxAttempts,
	})
	j.logg.Info(logCtx, "payment event retry complete")
	return errs
}
