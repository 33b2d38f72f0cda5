package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/gapline/internal/config"
)

// Unlimited marks a cap or allowance with no bound.
const Unlimited = -1

type Type string

const (
	TypeFree         Type = "free"
	TypeStarter      Type = "starter"
	TypeGrowth       Type = "growth"
	TypeProfessional Type = "professional"
	TypeScale        Type = "scale"
	TypeEnterprise   Type = "enterprise"
)

// ParseType normalizes s; the second result is false for unknown plans.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	_, ok := ranks[t]
	return t, ok
}

type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusUnpaid   SubscriptionStatus = "unpaid"
)

func ParseStatus(s string) (SubscriptionStatus, bool) {
	st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusNone, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return st, true
	}
	return st, false
}

type FeatureKey string

const (
	FeaturePlaybooks        FeatureKey = "playbooks"
	FeatureICPs             FeatureKey = "icps"
	FeatureEnrolledAccounts FeatureKey = "enrolled_accounts"
	FeatureAccounts         FeatureKey = "accounts"
	FeatureUsers            FeatureKey = "users"
)

// FeatureKeys lists every limited feature in display order.
func FeatureKeys() []FeatureKey {
	return []FeatureKey{
		FeaturePlaybooks,
		FeatureICPs,
		FeatureEnrolledAccounts,
		FeatureAccounts,
		FeatureUsers,
	}
}

func ParseFeature(s string) (FeatureKey, bool) {
	f := FeatureKey(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FeatureKeys() {
		if f == known {
			return f, true
		}
	}
	return f, false
}

// Limits maps a feature to its cap; Unlimited means no cap.
type Limits map[FeatureKey]int

func (l Limits) Clone() Limits {
	out := make(Limits, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Limit returns the cap for f. A feature missing from the table is unlimited.
func (l Limits) Limit(f FeatureKey) int {
	if v, ok := l[f]; ok {
		return v
	}
	return Unlimited
}

type Plan struct {
	Type            Type
	Name            string
	CreditAllowance int
	Limits          Limits
}

func (p Plan) UnlimitedCredits() bool {
	return p.CreditAllowance == Unlimited
}

var (
	ErrUnknownPlan    = fmt.Errorf("%w: unknown_plan", config.ErrConfiguration)
	ErrInvalidFeature = errors.New("invalid_feature")
)
