// Package entitlement tracks the locally stored subscription record that
// unlocks premium features. The record is not verified against the
// payment provider.
package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidCheckout = errors.New("invalid_checkout_result")
	ErrUnknownPlan     = errors.New("unknown_plan")
	ErrPersistFailed   = errors.New("subscription_persist_failed")
)

const (
	PlanMonthly  = "monthly"
	PlanYearly   = "yearly"
	PlanLifetime = "lifetime"
)

var Module = fx.Module("entitlement",
	fx.Provide(NewService),
)

// CheckoutResult is what the checkout widget reports on success.
type CheckoutResult struct {
	CustomerID     string     `json:"customerId"`
	SubscriptionID string     `json:"subscriptionId"`
	Plan           string     `json:"plan"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type Service struct {
	store *storage.Store
	clock clock.Clock
	log   *zap.Logger
}

func NewService(store *storage.Store, clk clock.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, clock: clk, log: log.Named("entitlement")}
}

// Activate stores an active subscription. When the result carries no
// expiry one is derived from the plan.
func (s *Service) Activate(ctx context.Context, in CheckoutResult) (domain.SubscriptionRecord, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.SubscriptionID = strings.TrimSpace(in.SubscriptionID)
	plan := strings.ToLower(strings.TrimSpace(in.Plan))
	if in.CustomerID == "" || in.SubscriptionID == "" {
		return domain.SubscriptionRecord{}, ErrInvalidCheckout
	}

	now := s.clock.Now().UTC()
	expiresAt := in.ExpiresAt
	if expiresAt == nil {
		var err error
		expiresAt, err = expiryFor(plan, now)
		if err != nil {
			return domain.SubscriptionRecord{}, err
		}
	}

	rec := domain.SubscriptionRecord{
		CustomerID:     in.CustomerID,
		SubscriptionID: in.SubscriptionID,
		Status:         domain.SubscriptionActive,
		Plan:           plan,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
	}
	if !s.store.SaveSubscription(ctx, rec) {
		return domain.SubscriptionRecord{}, ErrPersistFailed
	}
	s.log.Info("subscription activated",
		zap.String("plan", plan),
		zap.String("subscription_id", rec.SubscriptionID),
	)
	return rec, nil
}

func expiryFor(plan string, now time.Time) (*time.Time, error) {
	var t time.Time
	switch plan {
	case PlanMonthly:
		t = now.AddDate(0, 1, 0)
	case PlanYearly:
		t = now.AddDate(1, 0, 0)
	case PlanLifetime:
		return nil, nil
	default:
		return nil, ErrUnknownPlan
	}
	return &t, nil
}

// Cancel removes the subscription record.
func (s *Service) Cancel(ctx context.Context) error {
	if !s.store.ClearSubscription(ctx) {
		return ErrPersistFailed
	}
	s.log.Info("subscription cancelled")
	return nil
}

// Current returns the stored record, marking it expired (and persisting
// that) once its expiry has passed.
func (s *Service) Current(ctx context.Context) *domain.SubscriptionRecord {
	rec := s.store.Subscription(ctx)
	if rec == nil {
		return nil
	}
	if rec.Status == domain.SubscriptionActive && rec.ExpiresAt != nil && !s.clock.Now().Before(*rec.ExpiresAt) {
		rec.Status = domain.SubscriptionExpired
		s.store.SaveSubscription(ctx, *rec)
		s.log.Info("subscription expired", zap.Time("expires_at", *rec.ExpiresAt))
	}
	return rec
}

func (s *Service) IsEntitled(ctx context.Context) bool {
	rec := s.Current(ctx)
	return rec != nil && rec.Status == domain.SubscriptionActive
}
