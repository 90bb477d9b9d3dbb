package usage

import "time"

// BillingPeriod decides which calendar month a usage count belongs to.
// The zero value uses UTC.
type BillingPeriod struct {
	Location *time.Location
}

// NewBillingPeriod returns a monthly period anchored in loc (nil = UTC)
func NewBillingPeriod(loc *time.Location) BillingPeriod {
	return BillingPeriod{Location: loc}
}

func (p BillingPeriod) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Start returns the first instant of the month containing now
func (p BillingPeriod) Start(now time.Time) time.Time {
	local := now.In(p.location())
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, p.location())
}

// End returns the first instant of the following month
func (p BillingPeriod) End(now time.Time) time.Time {
	return p.Start(now).AddDate(0, 1, 0)
}
