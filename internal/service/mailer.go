package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// VerificationMail carries a freshly issued email-verification token.
type VerificationMail struct {
	UserID    uint
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
	VerifyURL string
}

// LoginCodeMail carries a freshly issued one-time login code.
type LoginCodeMail struct {
	UserID    uint
	Email     string
	Code      string
	ExpiresAt time.Time
}

// ReceiptMail confirms a settled payment.
type ReceiptMail struct {
	UserID    uint
	Email     string
	Reference string
	Plan      string
	Amount    int64
	Currency  string
	PaidAt    time.Time
}

// Mailer delivers transactional mail. Delivery is fire-and-forget from the
// caller's perspective; a failed send is logged, never retried.
type Mailer interface {
	SendVerificationLink(ctx context.Context, mail VerificationMail) error
	SendLoginCode(ctx context.Context, mail LoginCodeMail) error
	SendPaymentReceipt(ctx context.Context, mail ReceiptMail) error
}

// DevMailer writes mail contents to the structured log instead of sending.
type DevMailer struct {
	logger *slog.Logger
}

func NewDevMailer(logger *slog.Logger) *DevMailer {
	return &DevMailer{logger: logger}
}

func (m *DevMailer) SendVerificationLink(ctx context.Context, mail VerificationMail) error {
	link := mail.VerifyURL
	if strings.TrimSpace(link) == "" {
		link = fmt.Sprintf("token=%s", url.QueryEscape(mail.Token))
	}
	m.logger.InfoContext(ctx, "verification mail issued",
		"user_id", mail.UserID,
		"email", mail.Email,
		"expires_at", mail.ExpiresAt,
		"verification", link,
	)
	return nil
}

func (m *DevMailer) SendLoginCode(ctx context.Context, mail LoginCodeMail) error {
	m.logger.InfoContext(ctx, "login code issued",
		"user_id", mail.UserID,
		"email", mail.Email,
		"code", mail.Code,
		"expires_at", mail.ExpiresAt,
	)
	return nil
}

func (m *DevMailer) SendPaymentReceipt(ctx context.Context, mail ReceiptMail) error {
	m.logger.InfoContext(ctx, "payment receipt issued",
		"user_id", mail.UserID,
		"email", mail.Email,
		"reference", mail.Reference,
		"plan", mail.Plan,
		"amount", mail.Amount,
		"currency", mail.Currency,
		"paid_at", mail.PaidAt,
	)
	return nil
}
