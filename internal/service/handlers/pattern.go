package handlers

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/patterns"
)

// PatternReport is the pattern_detection payload
type PatternReport struct {
	Patterns *patterns.Result   `json:"patterns"`
	Insights []patterns.Insight `json:"insights"`
}

// PatternAnalyzer handles pattern_detection. It makes no model call.
type PatternAnalyzer struct {
	detector *patterns.Detector
}

// NewPatternAnalyzer creates a PatternAnalyzer
func NewPatternAnalyzer(detector *patterns.Detector) *PatternAnalyzer {
	return &PatternAnalyzer{detector: detector}
}

// Process runs detection over the context's logs and persists the results
func (h *PatternAnalyzer) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	if uc == nil || uc.UserID == "" {
		return nil, invalidInput("user context is required")
	}

	result, insights := h.detector.Run(ctx, uc.UserID, uc.RecentWorkouts, uc.RecentNutrition, uc.BodyMetrics)
	if insights == nil {
		insights = []patterns.Insight{}
	}

	return &Result{
		Data:       &PatternReport{Patterns: result, Insights: insights},
		Confidence: patternConfidence(uc),
	}, nil
}

// patternConfidence grows with the amount of history behind the patterns
func patternConfidence(uc *db.ContextCache) float64 {
	score := 0.4
	if len(uc.RecentWorkouts) >= 4 {
		score += 0.2
	}
	if len(uc.RecentWorkouts) >= 12 {
		score += 0.1
	}
	if len(uc.RecentNutrition) >= 3 {
		score += 0.15
	}
	if len(uc.BodyMetrics) >= 2 {
		score += 0.1
	}
	return clamp01(score)
}
