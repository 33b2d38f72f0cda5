package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	ReconcileNone        = ""
	ReconcileUpgrade     = "upgrade"
	ReconcileDowngrade   = "downgrade"
	ReconcileToUnlimited = "to_unlimited"
	ReconcileToMetered   = "to_metered"
)

// PeriodFormat renders billing periods as YYYY-MM.
const PeriodFormat = "2006-01"

func BillingPeriod(t time.Time) string {
	return t.UTC().Format(PeriodFormat)
}

// Reconcile adjusts a ledger to a changed plan allowance without discarding
// recorded consumption. The remaining balance never goes below zero.
func Reconcile(l CreditLedger, allowance int) (CreditLedger, string) {
	if l.TotalAllowance == allowance {
		return l, ReconcileNone
	}

	out := l
	out.TotalAllowance = allowance
	switch {
	case allowance < 0:
		return out, ReconcileToUnlimited
	case l.TotalAllowance < 0:
		out.CreditsRemaining = max(0, allowance-l.CreditsUsed)
		return out, ReconcileToMetered
	}

	out.CreditsRemaining = max(0, l.CreditsRemaining+allowance-l.TotalAllowance)
	if allowance > l.TotalAllowance {
		return out, ReconcileUpgrade
	}
	return out, ReconcileDowngrade
}

// PercentUsed is 0 for unlimited or empty allowances.
func PercentUsed(used, allowance int) int {
	if allowance <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(allowance) * 100))
}

func InsufficientMessage(required, remaining int) string {
	return fmt.Sprintf("Insufficient credits: %d required, %d remaining", required, remaining)
}
