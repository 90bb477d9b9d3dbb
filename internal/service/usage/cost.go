package usage

import (
	"fitcoach/internal/config"
	"math"
)

// Token split assumed when only a total is known
const (
	inputShare  = 0.7
	outputShare = 0.3
)

// CostCents prices totalTokens against a per-1000-token price table and
// returns cents rounded to two decimals.
func CostCents(totalTokens int, price config.ModelPrice) float64 {
	if totalTokens <= 0 {
		return 0
	}
	tokens := float64(totalTokens)
	dollars := (tokens*inputShare)*price.InputPer1K/1000 + (tokens*outputShare)*price.OutputPer1K/1000
	return math.Round(dollars*100*100) / 100
}

// Pricer computes request cost from the configured model pricing
type Pricer struct {
	cfg *config.AIConfig
}

// NewPricer creates a Pricer over the AI config
func NewPricer(cfg *config.AIConfig) *Pricer {
	return &Pricer{cfg: cfg}
}

// Cost returns the cost in cents and whether the model had a price entry.
// Unpriced models cost 0.
func (p *Pricer) Cost(model string, totalTokens int) (float64, bool) {
	price, ok := p.cfg.PriceFor(model)
	if !ok {
		return 0, false
	}
	return CostCents(totalTokens, price), true
}
