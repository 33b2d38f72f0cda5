package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	DeductOutcomeCharged      = "charged"
	DeductOutcomeUnlimited    = "unlimited"
	DeductOutcomeInsufficient = "insufficient"
	DeductOutcomeError        = "error"
)

const (
	ReconcileUpgrade     = "upgrade"
	ReconcileDowngrade   = "downgrade"
	ReconcileToUnlimited = "to_unlimited"
	ReconcileToMetered   = "to_metered"
	ReconcileUnchanged   = "unchanged"
)

const (
	ErrorReasonDeadlineExceeded     = "deadline_exceeded"
	ErrorReasonDBLockTimeout        = "db_lock_timeout"
	ErrorReasonSerializationFailure = "serialization_failure"
	ErrorReasonUniqueViolation      = "unique_violation"
	ErrorReasonUnknown              = "unknown"
)

// MeteringMetrics captures credit ledger and plan limit signals.
type MeteringMetrics struct {
	deductions      *prometheus.CounterVec
	creditsCharged  *prometheus.CounterVec
	deductDuration  prometheus.Histogram
	ledgerErrors    *prometheus.CounterVec
	ledgersCreated  prometheus.Counter
	reconciliations *prometheus.CounterVec
	featureDenied   *prometheus.CounterVec
}

var (
	meteringOnce    sync.Once
	meteringMetrics *MeteringMetrics
)

// Metering returns the process-wide metering metrics registered on the default registry.
func Metering(cfg Config) *MeteringMetrics {
	meteringOnce.Do(func() {
		meteringMetrics = NewMeteringMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return meteringMetrics
}

// NewMeteringMetrics registers a fresh set of collectors; tests pass their own registry.
func NewMeteringMetrics(registerer prometheus.Registerer, cfg Config) *MeteringMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	prefix := namespace(cfg)
	labels := constLabels(cfg)

	m := &MeteringMetrics{
		deductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_credit_deductions_total",
			Help:        "Credit deduction attempts by action and outcome.",
			ConstLabels: labels,
		}, []string{"action", "outcome"}),
		creditsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_credits_charged_total",
			Help:        "Credits charged by action.",
			ConstLabels: labels,
		}, []string{"action"}),
		deductDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        prefix + "_credit_deduct_duration_seconds",
			Help:        "Latency of the deduct transaction.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: labels,
		}),
		ledgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_credit_ledger_errors_total",
			Help:        "Credit ledger storage errors by low-cardinality reason.",
			ConstLabels: labels,
		}, []string{"operation", "reason"}),
		ledgersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_credit_ledgers_created_total",
			Help:        "Billing-period ledgers created.",
			ConstLabels: labels,
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_plan_reconciliations_total",
			Help:        "Ledger reconciliations after plan changes.",
			ConstLabels: labels,
		}, []string{"direction"}),
		featureDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_feature_limit_denied_total",
			Help:        "Feature creations blocked by plan limits.",
			ConstLabels: labels,
		}, []string{"feature", "plan_type"}),
	}

	registerer.MustRegister(
		m.deductions,
		m.creditsCharged,
		m.deductDuration,
		m.ledgerErrors,
		m.ledgersCreated,
		m.reconciliations,
		m.featureDenied,
	)
	return m
}

func (m *MeteringMetrics) ObserveDeduct(action, outcome string, credits int, duration time.Duration) {
	if m == nil {
		return
	}
	m.deductions.WithLabelValues(normalize(action), normalize(outcome)).Inc()
	if outcome == DeductOutcomeCharged || outcome == DeductOutcomeUnlimited {
		m.creditsCharged.WithLabelValues(normalize(action)).Add(float64(credits))
	}
	m.deductDuration.Observe(duration.Seconds())
}

func (m *MeteringMetrics) IncLedgerError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(normalize(operation), ClassifyErrorReason(err)).Inc()
}

func (m *MeteringMetrics) IncLedgerCreated() {
	if m == nil {
		return
	}
	m.ledgersCreated.Inc()
}

func (m *MeteringMetrics) IncReconciliation(direction string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalize(direction)).Inc()
}

func (m *MeteringMetrics) IncFeatureDenied(feature, planType string) {
	if m == nil {
		return
	}
	m.featureDenied.WithLabelValues(normalize(feature), normalize(planType)).Inc()
}

// ClassifyErrorReason maps storage errors to a bounded label set.
func ClassifyErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ErrorReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ErrorReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ErrorReasonUniqueViolation
	default:
		return ErrorReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func constLabels(cfg Config) prometheus.Labels {
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "gapline"
	}
	return prometheus.Labels{"service": service, "env": environment}
}

func normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
