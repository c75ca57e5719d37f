package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/fx"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type converter interface {
	ToNative(ctx context.Context, amount decimal.Decimal, currency enums.Currency) (fx.Conversion, error)
}

type depositor interface {
	DepositWithTx(ctx context.Context, tx *gorm.DB, input settlement.DepositInput) (*settlement.DepositResult, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Events            Repository
	Records           ledger.Repository
	Deposits          depositor
	Converter         converter
	Guard             eventGuard
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.LedgerMetrics
	ConversionTimeout time.Duration
}

// Service ingests verified gateway events and credits patient wallets.
type Service struct {
	events            Repository
	records           ledger.Repository
	deposits          depositor
	fx                converter
	guard             eventGuard
	txRunner          txRunner
	logg              *logger.Logger
	metrics           *metrics.LedgerMetrics
	conversionTimeout time.Duration
	now               func() time.Time
}

// Outcome reports what happened to one delivery.
type Outcome struct {
	GatewayEventID string                   `json:"eventId"`
	EventType      string                   `json:"eventType"`
	Status         enums.PaymentEventStatus `json:"status,omitempty"`
	Duplicate      bool                     `json:"duplicate"`
	TransactionID  string                   `json:"transactionId,omitempty"`
	Amount         decimal.Decimal          `json:"amount"`
	Note           string                   `json:"note,omitempty"`
}

var errDuplicateDelivery = errors.New("duplicate delivery")

func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment event repo required")
	}
	if params.Records == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction repo required")
	}
	if params.Deposits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deposit service required")
	}
	if params.Converter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "currency converter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	timeout := params.ConversionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		events:            params.Events,
		records:           params.Records,
		deposits:          params.Deposits,
		fx:                params.Converter,
		guard:             params.Guard,
		txRunner:          params.TransactionRunner,
		logg:              params.Logger,
		metrics:           params.Metrics,
		conversionTimeout: timeout,
		now:               time.Now,
	}, nil
}

// HandleEvent ingests a verified event exactly once. Processing problems are
// recorded on the stored row instead of being returned, so the gateway is
// always acknowledged once the signature checked out.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event, payload []byte) (*Outcome, error) {
	if event == nil || event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	ctx = s.withEvent(ctx, event.ID, string(event.Type))

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, event.ID)
		if err != nil {
			s.warn(ctx, "webhook guard unavailable, relying on durable dedupe", err)
		} else if !claimed {
			s.metrics.ObserveWebhookEvent(string(event.Type), "duplicate")
			return &Outcome{GatewayEventID: event.ID, EventType: string(event.Type), Duplicate: true}, nil
		}
	}

	outcome := s.process(ctx, event, payload, false)
	if outcome.Status == enums.PaymentEventStatusFailed && s.guard != nil {
		if err := s.guard.Release(ctx, event.ID); err != nil {
			s.warn(ctx, "release webhook guard", err)
		}
	}
	return outcome, nil
}

// Reprocess retries a stored event that previously failed.
func (s *Service) Reprocess(ctx context.Context, gatewayEventID string) (*Outcome, error) {
	stored, err := s.events.FindByGatewayID(ctx, gatewayEventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment event")
	}
	if stored == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment event not found").
			WithDetails(map[string]any{"eventId": gatewayEventID})
	}
	if stored.ProcessingStatus != enums.PaymentEventStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed events can be reprocessed").
			WithDetails(map[string]any{"eventId": gatewayEventID, "status": stored.ProcessingStatus})
	}

	var event stripe.Event
	if err := json.Unmarshal([]byte(stored.RawPayload), &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stored payload")
	}
	ctx = s.withEvent(ctx, event.ID, string(event.Type))
	return s.process(ctx, &event, []byte(stored.RawPayload), true), nil
}

// ListEvents returns stored events, newest first. An empty status lists all.
func (s *Service) ListEvents(ctx context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error) {
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", status))
	}
	events, err := s.events.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment events")
	}
	return events, nil
}

// ListRetryable returns failed events that still have attempts left.
func (s *Service) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.ExternalPaymentEvent, error) {
	events, err := s.events.ListRetryable(ctx, maxAttempts, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list retryable payment events")
	}
	return events, nil
}

// PaymentHistory lists the gateway payments correlated with a patient.
func (s *Service) PaymentHistory(ctx context.Context, email string) ([]models.ExternalPaymentEvent, error) {
	events, err := s.events.ListByPatientEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment history")
	}
	return events, nil
}

func (s *Service) process(ctx context.Context, event *stripe.Event, payload []byte, retry bool) *Outcome {
	outcome := &Outcome{GatewayEventID: event.ID, EventType: string(event.Type)}
	row := &models.ExternalPaymentEvent{
		GatewayEventID: event.ID,
		EventType:      string(event.Type),
		RawPayload:     string(payload),
		Attempts:       1,
	}

	parsed, err := decodeEvent(event)
	if err != nil {
		s.fail(ctx, row, outcome, err)
		return outcome
	}
	fillRow(row, parsed)
	outcome.Amount = parsed.Amount

	var conversion *fx.Conversion
	switch {
	case !parsed.Creditable:
		row.ProcessingStatus = enums.PaymentEventStatusIgnored
	case parsed.email() == "":
		s.unresolved(row, "missing email in metadata")
	case !strings.Contains(parsed.email(), "@"):
		s.unresolved(row, "invalid email in metadata")
	case !parsed.Amount.IsPositive():
		s.unresolved(row, "non-positive amount")
	default:
		currency, err := enums.ParseCurrency(parsed.Currency)
		if err != nil {
			s.unresolved(row, err.Error())
			break
		}
		convCtx, cancel := context.WithTimeout(ctx, s.conversionTimeout)
		converted, err := s.fx.ToNative(convCtx, parsed.Amount, currency)
		cancel()
		if err != nil {
			s.unresolved(row, err.Error())
			break
		}
		conversion = &converted
		row.ProcessingStatus = enums.PaymentEventStatusApplied
	}

	processedAt := s.now().UTC()
	row.ProcessedAt = &processedAt

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		events := s.events.WithTx(tx)

		var existing *models.ExternalPaymentEvent
		if !retry {
			inserted, err := events.InsertIfAbsent(ctx, row)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment event")
			}
			if inserted && conversion == nil {
				return nil
			}
			if !inserted {
				existing, err = events.FindByGatewayID(ctx, row.GatewayEventID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment event")
				}
				if existing == nil || existing.ProcessingStatus != enums.PaymentEventStatusFailed {
					return errDuplicateDelivery
				}
			}
		} else {
			found, err := events.FindByGatewayID(ctx, row.GatewayEventID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment event")
			}
			if found == nil || found.ProcessingStatus != enums.PaymentEventStatusFailed {
				return errDuplicateDelivery
			}
			existing = found
		}
		if existing != nil {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			row.Attempts = existing.Attempts + 1
		}

		if conversion != nil {
			if err := s.credit(ctx, tx, row, parsed, conversion, outcome); err != nil {
				return err
			}
		}
		return events.Save(ctx, row)
	})

	switch {
	case errors.Is(err, errDuplicateDelivery):
		outcome.Duplicate = true
		outcome.Status = ""
		s.metrics.ObserveWebhookEvent(outcome.EventType, "duplicate")
		if s.logg != nil {
			s.logg.Info(ctx, "duplicate stripe event ignored")
		}
		return outcome
	case err != nil:
		s.fail(ctx, row, outcome, err)
		return outcome
	}

	outcome.Status = row.ProcessingStatus
	if row.ProcessingError != nil {
		outcome.Note = *row.ProcessingError
	}
	s.metrics.ObserveWebhookEvent(outcome.EventType, string(outcome.Status))
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "processing_status", string(outcome.Status))
		if outcome.Status == enums.PaymentEventStatusUnresolved {
			s.logg.Warn(s.logg.WithField(logCtx, "reason", outcome.Note), "stripe event stored unresolved")
		} else {
			s.logg.Info(logCtx, "stripe event processed")
		}
	}
	return outcome
}

func (s *Service) credit(ctx context.Context, tx *gorm.DB, row *models.ExternalPaymentEvent, parsed *paymentEvent, conversion *fx.Conversion, outcome *Outcome) error {
	credited, err := s.records.WithTx(tx).ExistsByExternalRef(ctx, parsed.PaymentRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check payment reference")
	}
	if credited {
		row.ProcessingStatus = enums.PaymentEventStatusIgnored
		note := "payment already credited"
		row.ProcessingError = &note
		return nil
	}

	description := "Stripe payment via PaymentIntent"
	if parsed.EventType == string(stripe.EventTypeCheckoutSessionCompleted) {
		description = "Stripe wallet top-up via Checkout"
	}
	meta := conversion.Metadata()
	meta["stripeEventId"] = parsed.GatewayEventID
	meta["stripeObjectId"] = parsed.ObjectID

	transactionID := "ADD-" + uuid.NewString()
	result, err := s.deposits.DepositWithTx(ctx, tx, settlement.DepositInput{
		ID:            transactionID,
		Email:         parsed.email(),
		Amount:        conversion.Amount,
		PaymentMethod: enums.PaymentMethodStripe,
		ExternalRef:   parsed.PaymentRef,
		Description:   description,
		Metadata:      meta,
	})
	if err != nil {
		return err
	}
	row.ProcessingStatus = enums.PaymentEventStatusApplied
	row.ProcessingError = nil
	row.TransactionID = &result.TransactionID
	outcome.TransactionID = result.TransactionID
	outcome.Amount = conversion.Amount
	return nil
}

// fail writes the event as failed in its own unit so it can be retried.
func (s *Service) fail(ctx context.Context, row *models.ExternalPaymentEvent, outcome *Outcome, cause error) {
	msg := cause.Error()
	processedAt := s.now().UTC()
	row.ProcessingStatus = enums.PaymentEventStatusFailed
	row.ProcessingError = &msg
	row.TransactionID = nil
	row.ProcessedAt = &processedAt

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		events := s.events.WithTx(tx)
		existing, err := events.FindByGatewayID(ctx, row.GatewayEventID)
		if err != nil {
			return err
		}
		if existing == nil {
			row.ID = uuid.Nil
			_, err := events.InsertIfAbsent(ctx, row)
			return err
		}
		if existing.ProcessingStatus != enums.PaymentEventStatusFailed {
			return nil
		}
		existing.ProcessingError = &msg
		existing.ProcessedAt = &processedAt
		if row.Attempts > existing.Attempts {
			existing.Attempts = row.Attempts
		} else {
			existing.Attempts++
		}
		return events.Save(ctx, existing)
	})

	outcome.Status = enums.PaymentEventStatusFailed
	outcome.Note = msg
	s.metrics.ObserveWebhookEvent(outcome.EventType, string(enums.PaymentEventStatusFailed))
	if s.logg != nil {
		s.logg.Error(ctx, "stripe event processing failed", cause)
		if err != nil {
			s.logg.Error(ctx, "record failed stripe event", err)
		}
	}
}

func (s *Service) unresolved(row *models.ExternalPaymentEvent, reason string) {
	row.ProcessingStatus = enums.PaymentEventStatusUnresolved
	row.ProcessingError = &reason
}

func fillRow(row *models.ExternalPaymentEvent, parsed *paymentEvent) {
	row.ObjectID = parsed.ObjectID
	row.Amount = parsed.Amount.Round(2)
	row.Currency = parsed.Currency
	row.Status = parsed.Status
	row.CustomerEmail = parsed.CustomerEmail
	row.PatientEmail = parsed.email()
	row.PaymentRef = parsed.PaymentRef
	if meta := metadataMap(parsed.Metadata); meta != nil {
		row.Metadata = datatypes.JSONMap(meta)
	}
}

func (s *Service) withEvent(ctx context.Context, id, eventType string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, map[string]any{
		"gateway_event_id": id,
		"event_type":       eventType,
	})
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
