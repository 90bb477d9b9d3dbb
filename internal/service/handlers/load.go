package handlers

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fmt"
	"math"
	"strings"
	"time"
)

// Load risk labels
const (
	RiskInsufficientData = "insufficient_data"
	RiskLow              = "low"
	RiskOptimal          = "optimal"
	RiskElevated         = "elevated"
	RiskHigh             = "high"
)

const (
	acuteWindow   = 7 * 24 * time.Hour
	chronicWindow = 28 * 24 * time.Hour
)

const loadSystemPrompt = `You are a strength coach reviewing training load.
Given acute and chronic load numbers, write two or three sentences: what the ratio means for this user and one concrete adjustment for the coming week.`

// LoadAnalysis is the load_analysis payload
type LoadAnalysis struct {
	AcuteLoad       float64 `json:"acute_load"`
	ChronicLoad     float64 `json:"chronic_load"`
	Ratio           float64 `json:"acute_chronic_ratio"`
	Risk            string  `json:"risk"`
	AcuteSessions   int     `json:"acute_sessions"`
	ChronicSessions int     `json:"chronic_sessions"`
	Commentary      string  `json:"commentary"`
}

// SessionLoad is the training load of one workout: total volume when any
// exercise has sets, reps and weight, otherwise the session duration.
func SessionLoad(w db.Workout) float64 {
	var volume float64
	for _, ex := range w.Exercises {
		volume += ex.Volume()
	}
	if volume > 0 {
		return volume
	}
	return float64(w.DurationMinutes)
}

// ComputeLoad derives acute (7-day) and chronic (28-day weekly mean) load
func ComputeLoad(workouts []db.Workout, now time.Time) LoadAnalysis {
	var a LoadAnalysis
	var chronicTotal float64
	for _, w := range workouts {
		age := now.Sub(w.PerformedAt)
		if age < 0 || age > chronicWindow {
			continue
		}
		load := SessionLoad(w)
		chronicTotal += load
		a.ChronicSessions++
		if age <= acuteWindow {
			a.AcuteLoad += load
			a.AcuteSessions++
		}
	}
	a.ChronicLoad = chronicTotal / 4

	if a.ChronicLoad > 0 {
		a.Ratio = math.Round(a.AcuteLoad/a.ChronicLoad*100) / 100
	}
	a.Risk = RiskLabel(a.Ratio, a.ChronicLoad)
	a.AcuteLoad = math.Round(a.AcuteLoad)
	a.ChronicLoad = math.Round(a.ChronicLoad)
	return a
}

// RiskLabel classifies an acute:chronic ratio
func RiskLabel(ratio, chronic float64) string {
	switch {
	case chronic <= 0:
		return RiskInsufficientData
	case ratio < 0.8:
		return RiskLow
	case ratio <= 1.3:
		return RiskOptimal
	case ratio <= 1.5:
		return RiskElevated
	default:
		return RiskHigh
	}
}

// LoadAnalyzer handles load_analysis
type LoadAnalyzer struct {
	gateway llm.Gateway
	now     func() time.Time
}

// NewLoadAnalyzer creates a LoadAnalyzer
func NewLoadAnalyzer(gateway llm.Gateway) *LoadAnalyzer {
	return &LoadAnalyzer{gateway: gateway, now: time.Now}
}

// Process computes the load numbers and asks the model for a short commentary
func (h *LoadAnalyzer) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	var workouts []db.Workout
	if uc != nil {
		workouts = uc.RecentWorkouts
	}
	analysis := ComputeLoad(workouts, h.now())

	if analysis.Risk == RiskInsufficientData {
		analysis.Commentary = "Log a few more workouts to get a training load analysis."
		return &Result{Data: &analysis, Confidence: 0.2, Model: cfg.Model}, nil
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Acute load (last 7 days): %.0f over %d sessions\n", analysis.AcuteLoad, analysis.AcuteSessions)
	fmt.Fprintf(&prompt, "Chronic load (weekly mean over 28 days): %.0f over %d sessions\n", analysis.ChronicLoad, analysis.ChronicSessions)
	fmt.Fprintf(&prompt, "Acute:chronic ratio: %.2f (%s)\n", analysis.Ratio, analysis.Risk)
	if q := strings.TrimSpace(input.Text); q != "" {
		fmt.Fprintf(&prompt, "User question: %s\n", q)
	}

	completion, err := complete(ctx, h.gateway, cfg, loadSystemPrompt, prompt.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	analysis.Commentary = strings.TrimSpace(completion.Text)

	confidence := 0.4 + 0.05*float64(analysis.ChronicSessions)
	return resultFrom(&analysis, confidence, cfg, completion), nil
}
