package handlers

import (
	"context"
	"encoding/base64"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"strings"
)

const defaultImageMediaType = "image/jpeg"

const photoSystemPrompt = `You estimate the nutrition of a meal from a photo.
Identify each visible food, estimate its portion, and reply with a single JSON object and nothing else:
{"meal_type": "breakfast|lunch|dinner|snack",
 "foods": [{"name": "<food>", "quantity": <number>, "unit": "<unit>", "calories": <number>, "protein": <grams>, "carbs": <grams>, "fat": <grams>}]}`

// PhotoAnalyzer handles photo_analysis
type PhotoAnalyzer struct {
	gateway llm.Gateway
}

// NewPhotoAnalyzer creates a PhotoAnalyzer
func NewPhotoAnalyzer(gateway llm.Gateway) *PhotoAnalyzer {
	return &PhotoAnalyzer{gateway: gateway}
}

// Process estimates a ParsedMeal from a base64 image. input.Text is an optional caption.
func (h *PhotoAnalyzer) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	if input.Image == "" {
		return nil, invalidInput("image is required")
	}
	if _, err := base64.StdEncoding.DecodeString(input.Image); err != nil {
		return nil, invalidInput("image must be base64 encoded")
	}

	mediaType := input.MediaType
	if mediaType == "" {
		mediaType = defaultImageMediaType
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, invalidInput("unsupported media type %q", mediaType)
	}

	message := "Analyze this meal."
	if caption := strings.TrimSpace(input.Text); caption != "" {
		message += " The user says: " + caption
	}

	completion, err := complete(ctx, h.gateway, cfg, photoSystemPrompt, message, nil,
		[]llm.Image{{MediaType: mediaType, Data: input.Image}})
	if err != nil {
		return nil, err
	}

	meal, err := decodeMeal(completion.Text)
	if err != nil {
		return nil, err
	}

	// portions from a photo are less certain than a written log
	return resultFrom(meal, mealConfidence(meal.Foods)*0.8, cfg, completion), nil
}
