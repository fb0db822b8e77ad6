package storefront

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/validator"
)

// paymentPollInterval is how often WaitForOutcome re-checks a pending
// payment while the mock provider processes it.
const paymentPollInterval = 2 * time.Second

// PaymentService drives the mock payment flow: create, confirm, and poll
// for the outcome.
type PaymentService struct {
	api    *transport.Client
	cache  *cache.Store
	logger *slog.Logger
}

// CardDetails is the payment form. Validated client-side; the number never
// reaches the network unless it passes a Luhn check.
type CardDetails struct {
	Number   string `json:"number" validate:"required,credit_card"`
	ExpMonth int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"expYear" validate:"required,min=2024"`
	CVV      string `json:"cvv" validate:"required,numeric,len=3"`
	Holder   string `json:"holder" validate:"required,max=120"`
}

// CreatePaymentInput starts a payment for an order.
type CreatePaymentInput struct {
	OrderID string      `json:"orderId" validate:"required"`
	Method  string      `json:"method" validate:"required,oneof=credit_card debit_card"`
	Card    CardDetails `json:"card"`

	// IdempotencyKey protects against double charges from retried
	// submissions. Filled automatically when empty.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// paymentInvalidations marks the payment and its order stale.
func paymentInvalidations(paymentID, orderID string) []cache.Predicate {
	preds := []cache.Predicate{cache.ByResource(resourceOrders)}
	if paymentID != "" {
		preds = append(preds, cache.WithParam(resourcePayment, "id", paymentID))
	}
	if orderID != "" {
		preds = append(preds, cache.WithParam(resourceOrder, "id", orderID))
	}
	return preds
}

// Create starts a payment for an order.
func (s *PaymentService) Create(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = uuid.NewString()
	}

	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Payment, error) {
		var payment domain.Payment
		if err := s.api.Post(ctx, "/payments", input, &payment); err != nil {
			return nil, err
		}
		return &payment, nil
	}, cache.MutationOpts{
		Invalidates: paymentInvalidations("", input.OrderID),
	})
}

// Confirm asks the mock provider to settle the payment.
func (s *PaymentService) Confirm(ctx context.Context, id string) (*domain.Payment, error) {
	return cache.MutateAs(ctx, s.cache, func(ctx context.Context) (*domain.Payment, error) {
		var payment domain.Payment
		if err := s.api.Post(ctx, "/payments/"+url.PathEscape(id)+"/confirm", nil, &payment); err != nil {
			return nil, err
		}
		return &payment, nil
	}, cache.MutationOpts{
		Invalidates: paymentInvalidations(id, ""),
	})
}

// Get returns the payment's current state. Payments in flight change fast,
// so the entry stays fresh only briefly.
func (s *PaymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	key := cache.NewKey(resourcePayment, "id", id)
	return cache.QueryAs(ctx, s.cache, key, func(ctx context.Context) (*domain.Payment, error) {
		var payment domain.Payment
		if err := s.api.Get(ctx, "/payments/"+url.PathEscape(id), &payment); err != nil {
			return nil, err
		}
		return &payment, nil
	}, cache.Options{
		StaleAfter: time.Second,
		Enabled:    func() bool { return id != "" },
	})
}

// WaitForOutcome polls the payment until it reaches a terminal state or ctx
// expires. Each poll bypasses the cached entry.
func (s *PaymentService) WaitForOutcome(ctx context.Context, id string) (*domain.Payment, error) {
	key := cache.NewKey(resourcePayment, "id", id)

	ticker := time.NewTicker(paymentPollInterval)
	defer ticker.Stop()

	for {
		s.cache.Invalidate(cache.Exactly(key))
		payment, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment.IsTerminal() {
			if payment.Status == domain.PaymentStatusFailed {
				return payment, apperrors.FromStatus(422, "PAYMENT_FAILED", payment.FailureReason)
			}
			return payment, nil
		}

		select {
		case <-ctx.Done():
			return payment, ctx.Err()
		case <-ticker.C:
		}
	}
}
