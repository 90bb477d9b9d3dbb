package validation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fitcoach/internal/repository/db"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTextLength is the longest accepted text input in characters
	MaxTextLength = 4000
	// MaxImageBytes is the largest accepted decoded image
	MaxImageBytes = 5 << 20
	// MaxConversationLimit caps the conversation listing page
	MaxConversationLimit = 100
)

var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AIRequestValidator validates AI endpoint requests
type AIRequestValidator struct{}

// NewAIRequestValidator creates a new AIRequestValidator
func NewAIRequestValidator() *AIRequestValidator {
	return &AIRequestValidator{}
}

// ValidateRequestType checks that the path segment names a known request type
func (v *AIRequestValidator) ValidateRequestType(requestType string) (db.RequestType, error) {
	if requestType == "" {
		return "", errors.New("request type cannot be empty")
	}
	rt := db.RequestType(requestType)
	if !rt.Valid() {
		names := make([]string, len(db.AllRequestTypes))
		for i, t := range db.AllRequestTypes {
			names[i] = string(t)
		}
		return "", fmt.Errorf("request type must be one of: %s; got %s", strings.Join(names, ", "), requestType)
	}
	return rt, nil
}

// ValidateText validates the free-text input
func (v *AIRequestValidator) ValidateText(text string) error {
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("text must be at most %d characters long, got %d", MaxTextLength, n)
	}
	return nil
}

// ValidateData checks that structured data, when present, is a JSON object
func (v *AIRequestValidator) ValidateData(data json.RawMessage) error {
	if len(data) == 0 {
		return nil // Data is optional
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("data must be a JSON object")
	}
	return nil
}

// ValidateImage validates a base64 image and its media type
func (v *AIRequestValidator) ValidateImage(image, mediaType string) error {
	if image == "" {
		if mediaType != "" {
			return errors.New("media_type requires an image")
		}
		return nil
	}

	if mediaType != "" && !allowedMediaTypes[mediaType] {
		return fmt.Errorf("media_type must be one of: image/jpeg, image/png, image/gif, image/webp; got %s", mediaType)
	}

	if size := base64.StdEncoding.DecodedLen(len(image)); size > MaxImageBytes {
		return fmt.Errorf("image must be at most %d bytes, got about %d", MaxImageBytes, size)
	}
	return nil
}

// ValidateAIRequest validates a complete AI request body for a request type
func (v *AIRequestValidator) ValidateAIRequest(requestType db.RequestType, text string, data json.RawMessage, image, mediaType string) error {
	if err := v.ValidateText(text); err != nil {
		return err
	}

	if err := v.ValidateData(data); err != nil {
		return err
	}

	if err := v.ValidateImage(image, mediaType); err != nil {
		return err
	}

	switch requestType {
	case db.RequestParseWorkout, db.RequestParseFood, db.RequestCoachChat, db.RequestVoiceTranscription:
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("text is required for %s", requestType)
		}
	case db.RequestPhotoAnalysis:
		if image == "" {
			return fmt.Errorf("image is required for %s", requestType)
		}
	}
	return nil
}

// ValidateConversationLimit parses the optional limit query parameter.
// An empty value returns fallback.
func (v *AIRequestValidator) ValidateConversationLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer, got %s", raw)
	}
	if limit < 1 || limit > MaxConversationLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %d", MaxConversationLimit, limit)
	}
	return limit, nil
}
