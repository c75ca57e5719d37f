package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider names the gateway in dedupe keys.
const Provider = "stripe"

type deliveryStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	WebhookEventKey(provider, eventID string) string
}

// DeliveryGuard drops concurrent redeliveries before they reach the
// database. The unique gateway_event_id column stays the source of truth,
// so losing a key only costs a lookup.
type DeliveryGuard struct {
	store    deliveryStore
	ttl      time.Duration
	provider string
	// owner marks keys written by this process so Release never frees a
	// claim taken by another replica.
	owner string
}

func NewDeliveryGuard(store deliveryStore, ttl time.Duration, provider string) (*DeliveryGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("delivery store required")
	case ttl <= 0:
		return nil, errors.New("delivery ttl must be positive")
	case provider == "":
		return nil, errors.New("provider required")
	}
	return &DeliveryGuard{store: store, ttl: ttl, provider: provider, owner: uuid.NewString()}, nil
}

// Claim reports false when another delivery of eventID is already in flight
// or was handled within the TTL.
func (g *DeliveryGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id required")
	}
	won, err := g.store.SetNX(ctx, g.store.WebhookEventKey(g.provider, eventID), g.owner, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s delivery %s: %w", g.provider, eventID, err)
	}
	return won, nil
}

// Release lets the gateway's next retry of eventID through.
func (g *DeliveryGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id required")
	}
	if _, err := g.store.DeleteIfValue(ctx, g.store.WebhookEventKey(g.provider, eventID), g.owner); err != nil {
		return fmt.Errorf("release %s delivery %s: %w", g.provider, eventID, err)
	}
	return nil
}
