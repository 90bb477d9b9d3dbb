package usage

import (
	"context"
	"errors"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fmt"
	"time"
)

// ErrQuotaExceeded is the sentinel wrapped by *QuotaError
var ErrQuotaExceeded = errors.New("usage quota exceeded")

// QuotaError describes a blocked request
type QuotaError struct {
	RequestType   db.RequestType
	Tier          string
	Used          int
	Limit         int
	SuggestedTier string
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("Monthly limit reached for %s (%d/%d) on the %s plan.", e.RequestType, e.Used, e.Limit, e.Tier)
	if e.SuggestedTier != "" {
		msg += fmt.Sprintf(" Upgrade to %s for a higher limit.", e.SuggestedTier)
	}
	return msg
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// Counter counts usage rows for a user and request type since a point in time
type Counter interface {
	CountUsageSince(ctx context.Context, userID string, requestType db.RequestType, since time.Time) (int, error)
}

// TypeUsage is one line of a usage summary. A nil Limit means unlimited.
type TypeUsage struct {
	RequestType db.RequestType `json:"request_type"`
	Used        int            `json:"used"`
	Limit       *int           `json:"limit"`
	Remaining   *int           `json:"remaining"`
}

// Summary is the per-type usage of a user within the current period
type Summary struct {
	Tier        string      `json:"tier"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	Types       []TypeUsage `json:"types"`
}

// QuotaChecker compares monthly usage counts against the tier limit table
type QuotaChecker struct {
	counter Counter
	cfg     *config.AIConfig
	period  BillingPeriod
	now     func() time.Time
}

// NewQuotaChecker creates a QuotaChecker. A nil now uses time.Now.
func NewQuotaChecker(counter Counter, cfg *config.AIConfig, period BillingPeriod, now func() time.Time) *QuotaChecker {
	if now == nil {
		now = time.Now
	}
	return &QuotaChecker{counter: counter, cfg: cfg, period: period, now: now}
}

// NormalizeTier maps an empty tier to the lowest configured tier
func (q *QuotaChecker) NormalizeTier(tier string) string {
	if tier != "" {
		return tier
	}
	if len(q.cfg.Tiers) > 0 {
		return q.cfg.Tiers[0]
	}
	return config.TierFree
}

// Check returns nil when the request may proceed, a *QuotaError when the
// limit is reached, or the counter's error.
func (q *QuotaChecker) Check(ctx context.Context, userID, tier string, requestType db.RequestType) error {
	tier = q.NormalizeTier(tier)

	limit := q.cfg.LimitFor(requestType, tier)
	if limit == nil {
		return nil
	}

	used, err := q.counter.CountUsageSince(ctx, userID, requestType, q.period.Start(q.now()))
	if err != nil {
		return fmt.Errorf("failed to count usage: %w", err)
	}

	if used >= *limit {
		return &QuotaError{
			RequestType:   requestType,
			Tier:          tier,
			Used:          used,
			Limit:         *limit,
			SuggestedTier: q.cfg.NextTier(tier),
		}
	}
	return nil
}

// Summary reports usage for every request type in the current period
func (q *QuotaChecker) Summary(ctx context.Context, userID, tier string) (*Summary, error) {
	tier = q.NormalizeTier(tier)
	now := q.now()
	start := q.period.Start(now)

	summary := &Summary{
		Tier:        tier,
		PeriodStart: start,
		PeriodEnd:   q.period.End(now),
		Types:       make([]TypeUsage, 0, len(db.AllRequestTypes)),
	}

	for _, rt := range db.AllRequestTypes {
		used, err := q.counter.CountUsageSince(ctx, userID, rt, start)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s usage: %w", rt, err)
		}
		line := TypeUsage{RequestType: rt, Used: used}
		if limit := q.cfg.LimitFor(rt, tier); limit != nil {
			remaining := *limit - used
			if remaining < 0 {
				remaining = 0
			}
			l := *limit
			line.Limit = &l
			line.Remaining = &remaining
		}
		summary.Types = append(summary.Types, line)
	}
	return summary, nil
}
