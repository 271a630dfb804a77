package domain

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// PeriodFrom returns the subscription deadline a payment on this cycle buys,
// counted from the reconciliation time.
func (c BillingCycle) PeriodFrom(now time.Time) time.Time {
	if c == CycleYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}

// Payment is one intent row per initiated checkout. Reference is the
// gateway-issued transaction reference; the pending->success transition is
// guarded by the current status so duplicate reconciliation (webhook plus
// client redirect) credits the subscription exactly once.
type Payment struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	UserID       uint          `gorm:"index;not null" json:"user_id"`
	Reference    string        `gorm:"uniqueIndex;size:128;not null" json:"reference"`
	Amount       int64         `gorm:"not null" json:"amount"`
	Currency     string        `gorm:"size:8;not null;default:GHS" json:"currency"`
	Plan         Plan          `gorm:"size:32;not null" json:"plan"`
	BillingCycle BillingCycle  `gorm:"size:16;not null" json:"billing_cycle"`
	Status       PaymentStatus `gorm:"size:16;not null;index;default:pending" json:"status"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
	CustomerCode string        `gorm:"size:64" json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}
