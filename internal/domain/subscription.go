package domain

import "time"

// Plan is an ordered tier. Comparison goes through Rank, never raw string
// equality.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

const FreeConversionsLimit = 5

func (p Plan) Rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanPro:
		return 1
	case PlanEnterprise:
		return 2
	default:
		return -1
	}
}

func (p Plan) Valid() bool { return p.Rank() >= 0 }

// AtLeast reports whether p satisfies the required tier.
func (p Plan) AtLeast(required Plan) bool {
	return p.Rank() >= 0 && p.Rank() >= required.Rank()
}

// ConversionsLimit is the per-period admission ceiling for the plan.
func (p Plan) ConversionsLimit() int {
	switch p {
	case PlanPro:
		return 1000
	case PlanEnterprise:
		return 5000
	default:
		return FreeConversionsLimit
	}
}

// Subscription is embedded in User. A nil ExpiresAt means the subscription
// never expires (free tier). Expired paid plans are demoted lazily on the
// next gate check rather than by a background sweep.
type Subscription struct {
	Plan             Plan       `gorm:"size:32;not null;default:free" json:"plan"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ConversionsUsed  int        `gorm:"not null;default:0" json:"conversions_used"`
	ConversionsLimit int        `gorm:"not null;default:5" json:"conversions_limit"`
	CustomerCode     string     `gorm:"size:64" json:"-"`
}

// Expired reports whether the subscription has a deadline in the past.
func (s Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
