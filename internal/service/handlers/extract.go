package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a completion carries no JSON object
var ErrNoJSON = errors.New("no JSON object in completion")

const maxExtracted = 3

// Action item categories
const (
	CategoryWorkout     = "workout"
	CategoryNutrition   = "nutrition"
	CategoryRest        = "rest"
	CategoryMeasurement = "measurement"
)

// Action item priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ActionItem is a concrete step extracted from coach output
type ActionItem struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

// Extractor pulls structured hints out of free-text model output
type Extractor interface {
	ExtractActionItems(text string) []ActionItem
	ExtractSuggestions(text string) []string
}

// RegexExtractor is the keyword and pattern based Extractor
type RegexExtractor struct{}

var (
	bulletLine     = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	sentenceSplit  = regexp.MustCompile(`[^.!?\n]+[.!?]?`)
	suggestionExpr = regexp.MustCompile(`(?i)(?:you could|you might want to|consider|try)\s+([^.!?\n]+)`)
	actionVerbs    = regexp.MustCompile(`(?i)\b(should|must|need to|make sure|aim|focus on|add|increase|reduce|schedule|track|get)\b`)
	markdownNoise  = strings.NewReplacer("**", "", "__", "", "`", "")
)

var categoryPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{CategoryRest, regexp.MustCompile(`(?i)\b(rest|sleep|recover|deload|day off|stretch)`)},
	{CategoryNutrition, regexp.MustCompile(`(?i)\b(protein|calorie|eat|meal|carb|fat|food|water|hydrat|diet|snack)`)},
	{CategoryMeasurement, regexp.MustCompile(`(?i)\b(weigh|measure|track|log|progress photo|body fat)`)},
	{CategoryWorkout, regexp.MustCompile(`(?i)\b(workout|exercise|train|set|rep|lift|cardio|run|squat|press|session)`)},
}

var (
	highPriority   = regexp.MustCompile(`(?i)\b(important|must|critical|essential)\b`)
	mediumPriority = regexp.MustCompile(`(?i)\b(should|recommend|consider)`)
)

// ExtractActionItems returns up to three action items. Bulleted or numbered
// lines are preferred; otherwise sentences with action verbs are used.
func (RegexExtractor) ExtractActionItems(text string) []ActionItem {
	candidates := bulletCandidates(text)
	if len(candidates) == 0 {
		for _, s := range sentenceSplit.FindAllString(text, -1) {
			s = strings.TrimSpace(s)
			if s != "" && actionVerbs.MatchString(s) {
				candidates = append(candidates, s)
			}
		}
	}

	items := make([]ActionItem, 0, maxExtracted)
	for _, c := range candidates {
		if len(items) == maxExtracted {
			break
		}
		items = append(items, ActionItem{
			Text:     c,
			Category: Categorize(c),
			Priority: Prioritize(c),
		})
	}
	return items
}

// ExtractSuggestions returns up to three "you could / consider / try" phrases
func (RegexExtractor) ExtractSuggestions(text string) []string {
	var out []string
	for _, m := range suggestionExpr.FindAllStringSubmatch(text, -1) {
		if len(out) == maxExtracted {
			break
		}
		if s := strings.TrimSpace(m[1]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func bulletCandidates(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			if s := strings.TrimSpace(markdownNoise.Replace(m[1])); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Categorize assigns a coarse category by keyword; workout is the fallback
func Categorize(text string) string {
	for _, p := range categoryPatterns {
		if p.re.MatchString(text) {
			return p.category
		}
	}
	return CategoryWorkout
}

// Prioritize assigns a priority by keyword
func Prioritize(text string) string {
	switch {
	case highPriority.MatchString(text):
		return PriorityHigh
	case mediumPriority.MatchString(text):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ExtractJSON returns the first balanced {...} block of text.
// Braces inside JSON strings are ignored.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the first JSON object of a completion into v
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode completion JSON: %w", err)
	}
	return nil
}
