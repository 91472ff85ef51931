package cost

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/liliang-cn/federation-go/pkg/log"
)

// Alert levels.
const (
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// Budget periods.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// warningThreshold is the fraction of a limit that triggers a warning alert.
const warningThreshold = 0.8

// retentionMonths bounds how long per-period spend buckets are kept.
const retentionMonths = 13

// Alert flags spend approaching or exceeding a budget limit.
type Alert struct {
	Level        string  `json:"level"`
	Message      string  `json:"message"`
	CurrentSpend float64 `json:"current_spend"`
	Threshold    float64 `json:"threshold"`
	Period       string  `json:"period"`
}

// tenantSpend holds one tenant's buckets, keyed YYYY-MM-DD and YYYY-MM.
type tenantSpend struct {
	mu      sync.Mutex
	daily   map[string]float64
	monthly map[string]float64
}

// BudgetTracker accumulates per-tenant spend by day and month and evaluates
// it against limits. Buckets older than the retention window are pruned on
// write.
type BudgetTracker struct {
	mu      sync.Mutex
	tenants map[string]*tenantSpend

	now    func() time.Time
	logger *slog.Logger
}

// BudgetOption configures a BudgetTracker.
type BudgetOption func(*BudgetTracker)

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) BudgetOption {
	return func(b *BudgetTracker) { b.now = now }
}

// NewBudgetTracker creates an empty tracker.
func NewBudgetTracker(opts ...BudgetOption) *BudgetTracker {
	b := &BudgetTracker{
		tenants: make(map[string]*tenantSpend),
		now:     time.Now,
		logger:  log.WithModule("budget"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BudgetTracker) tenant(id string) *tenantSpend {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tenants[id]
	if !ok {
		t = &tenantSpend{
			daily:   make(map[string]float64),
			monthly: make(map[string]float64),
		}
		b.tenants[id] = t
	}
	return t
}

// Track records spend for a tenant at the given time. A zero timestamp means
// now.
func (b *BudgetTracker) Track(tenantID, providerID string, cost float64, at time.Time) {
	if at.IsZero() {
		at = b.now()
	}
	at = at.UTC()

	t := b.tenant(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.daily[at.Format("2006-01-02")] += cost
	t.monthly[at.Format("2006-01")] += cost

	b.pruneLocked(t)

	b.logger.Debug("tracked spend",
		"tenant", tenantID, "provider", providerID, "cost", cost)
}

// pruneLocked drops buckets older than the retention window. Caller holds
// the tenant lock.
func (b *BudgetTracker) pruneLocked(t *tenantSpend) {
	cutoff := b.now().UTC().AddDate(0, -retentionMonths, 0)
	cutoffMonth := cutoff.Format("2006-01")
	cutoffDay := cutoff.Format("2006-01-02")

	for key := range t.monthly {
		if key < cutoffMonth {
			delete(t.monthly, key)
		}
	}
	for key := range t.daily {
		if key < cutoffDay {
			delete(t.daily, key)
		}
	}
}

// Spend returns the tenant's spend for a period. An empty date means the
// current day or month.
func (b *BudgetTracker) Spend(tenantID, period, date string) float64 {
	b.mu.Lock()
	t, ok := b.tenants[tenantID]
	b.mu.Unlock()
	if !ok {
		return 0.0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch period {
	case PeriodDaily:
		if date == "" {
			date = b.now().UTC().Format("2006-01-02")
		}
		return t.daily[date]
	case PeriodMonthly:
		if date == "" {
			date = b.now().UTC().Format("2006-01")
		}
		return t.monthly[date]
	}
	return 0.0
}

// CheckBudget evaluates current spend against limits. A limit of zero is
// unset. At most one alert per period is returned: critical at or above the
// limit, warning at 80% or above.
func (b *BudgetTracker) CheckBudget(tenantID string, dailyLimit, monthlyLimit float64) []Alert {
	var alerts []Alert

	if dailyLimit > 0 {
		if a, ok := checkPeriod(b.Spend(tenantID, PeriodDaily, ""), dailyLimit, PeriodDaily); ok {
			alerts = append(alerts, a)
		}
	}
	if monthlyLimit > 0 {
		if a, ok := checkPeriod(b.Spend(tenantID, PeriodMonthly, ""), monthlyLimit, PeriodMonthly); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

func checkPeriod(spend, limit float64, period string) (Alert, bool) {
	switch {
	case spend >= limit:
		return Alert{
			Level:        AlertCritical,
			Message:      fmt.Sprintf("%s budget exceeded: $%.2f / $%.2f", periodLabel(period), spend, limit),
			CurrentSpend: spend,
			Threshold:    limit,
			Period:       period,
		}, true
	case spend >= limit*warningThreshold:
		return Alert{
			Level:        AlertWarning,
			Message:      fmt.Sprintf("%s budget at %.0f%%: $%.2f / $%.2f", periodLabel(period), spend/limit*100, spend, limit),
			CurrentSpend: spend,
			Threshold:    limit,
			Period:       period,
		}, true
	}
	return Alert{}, false
}

func periodLabel(period string) string {
	if period == PeriodMonthly {
		return "Monthly"
	}
	return "Daily"
}
