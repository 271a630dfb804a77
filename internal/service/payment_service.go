package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
	"pdflux-api/internal/repository"
)

var (
	ErrUnknownPlan     = errors.New("unknown plan or billing cycle")
	ErrPaymentNotFound = errors.New("payment not found")
)

// planPrices is the charge table in GHS subunits.
var planPrices = map[domain.Plan]map[domain.BillingCycle]int64{
	domain.PlanPro: {
		domain.CycleMonthly: 50_00,
		domain.CycleYearly:  480_00,
	},
	domain.PlanEnterprise: {
		domain.CycleMonthly: 150_00,
		domain.CycleYearly:  1440_00,
	},
}

const paymentCurrency = "GHS"

// Checkout is what the client needs to hand the user to the gateway.
type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// PaymentService creates charge intents and reconciles their outcomes.
// Reconciliation is idempotent: the pending to success transition is guarded
// in storage, so webhook and redirect verification may both run for the same
// reference and the subscription is credited exactly once.
type PaymentService struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	gateway  PaymentGateway
	mailer   Mailer
	logger   *slog.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	gateway PaymentGateway,
	mailer Mailer,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		users:    users,
		gateway:  gateway,
		mailer:   mailer,
		logger:   logger,
	}
}

// Initialize starts a checkout for a paid plan and records the pending
// payment under a locally minted reference.
func (s *PaymentService) Initialize(ctx context.Context, userID uint, plan domain.Plan, cycle domain.BillingCycle) (*Checkout, error) {
	amount, ok := planPrices[plan][cycle]
	if !ok || !cycle.Valid() {
		return nil, fmt.Errorf("%w: plan=%q cycle=%q", ErrUnknownPlan, plan, cycle)
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	reference := "pdflux-" + uuid.New().String()
	result, err := s.gateway.Initialize(ctx, InitializeRequest{
		Email:     user.Email,
		Amount:    amount,
		Currency:  paymentCurrency,
		Reference: reference,
	})
	if err != nil {
		observability.RecordPaymentEvent(ctx, "initialize", "gateway_error")
		return nil, err
	}
	if result.Reference != "" {
		reference = result.Reference
	}

	payment := &domain.Payment{
		UserID:       userID,
		Reference:    reference,
		Amount:       amount,
		Currency:     paymentCurrency,
		Plan:         plan,
		BillingCycle: cycle,
		Status:       domain.PaymentPending,
	}
	if err := s.payments.Create(payment); err != nil {
		observability.RecordPaymentEvent(ctx, "initialize", "error")
		return nil, err
	}

	observability.RecordPaymentEvent(ctx, "initialize", "success")
	s.logger.InfoContext(ctx, "payment initialized",
		"user_id", userID,
		"reference", reference,
		"plan", plan,
		"cycle", cycle,
		"amount", amount,
	)
	return &Checkout{
		Reference:        reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Amount:           amount,
		Currency:         paymentCurrency,
	}, nil
}

// Reconcile verifies a reference with the gateway and settles the local
// ledger. Already-settled payments are returned as-is without another
// gateway round trip.
func (s *PaymentService) Reconcile(ctx context.Context, reference string) (*domain.Payment, error) {
	payment, err := s.payments.FindByReference(reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.Status != domain.PaymentPending {
		observability.RecordPaymentEvent(ctx, "reconcile", "noop")
		return payment, nil
	}

	result, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		observability.RecordPaymentEvent(ctx, "reconcile", "gateway_error")
		return nil, err
	}

	if !result.Settled() {
		if result.Status == "failed" || result.Status == "abandoned" {
			if _, err := s.payments.MarkFailed(reference); err != nil {
				return nil, err
			}
		}
		observability.RecordPaymentEvent(ctx, "reconcile", result.Status)
		return s.payments.FindByReference(reference)
	}

	paidAt := result.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	transitioned, err := s.payments.MarkSuccess(reference, paidAt, result.CustomerCode)
	if err != nil {
		return nil, err
	}
	if transitioned {
		if err := s.credit(ctx, payment, paidAt, result.CustomerCode); err != nil {
			return nil, err
		}
		observability.RecordPaymentEvent(ctx, "reconcile", "success")
	} else {
		// Lost the race against a concurrent reconcile; the winner credited.
		observability.RecordPaymentEvent(ctx, "reconcile", "noop")
	}

	return s.payments.FindByReference(reference)
}

// credit applies the purchased plan to the user and sends the receipt.
func (s *PaymentService) credit(ctx context.Context, payment *domain.Payment, paidAt time.Time, customerCode string) error {
	expiresAt := payment.BillingCycle.PeriodFrom(paidAt)
	limit := payment.Plan.ConversionsLimit()
	if err := s.users.ApplySubscription(payment.UserID, payment.Plan, limit, expiresAt, customerCode); err != nil {
		return fmt.Errorf("apply subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "subscription credited",
		"user_id", payment.UserID,
		"reference", payment.Reference,
		"plan", payment.Plan,
		"expires_at", expiresAt,
	)

	user, err := s.users.FindByID(payment.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "receipt not sent, user lookup failed", "user_id", payment.UserID, "error", err)
		return nil
	}

	mail := ReceiptMail{
		UserID:    user.ID,
		Email:     user.Email,
		Reference: payment.Reference,
		Plan:      string(payment.Plan),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		PaidAt:    paidAt,
	}
	if err := s.mailer.SendPaymentReceipt(ctx, mail); err != nil {
		s.logger.WarnContext(ctx, "receipt mail delivery failed", "user_id", user.ID, "error", err)
	}

	return nil
}
