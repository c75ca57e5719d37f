package cron

import (
	"context"
	"fmt"

	"github.com/healthoasis/wallet-backend/internal/fx"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

type rateRefresher interface {
	Refresh(ctx context.Context) (fx.Quote, error)
}

type FXRefreshJobParams struct {
	Logger    *logger.Logger
	Converter rateRefresher
}

// NewFXRefreshJob pre-warms the USD->INR rate cache so top-ups rarely wait
// on the live lookup.
func NewFXRefreshJob(params FXRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Converter == nil {
		return nil, fmt.Errorf("converter required")
	}
	return &fxRefreshJob{logg: params.Logger, converter: params.Converter}, nil
}

type fxRefreshJob struct {
	logg      *logger.Logger
	converter rateRefresher
}

func (j *fxRefreshJob) Name() string { return "fx-rate-refresh" }

func (j *fxRefreshJob) Run(ctx context.Context) error {
	quote, err := j.converter.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh fx rate: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"rate":       quote.Rate.String(),
		"fetched_at": quote.FetchedAt,
	})
	j.logg.Info(logCtx, "fx rate cache refreshed")
	return nil
}
