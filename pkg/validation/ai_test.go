package validation

import (
	"encoding/json"
	"fitcoach/internal/repository/db"
	"strings"
	"testing"
)

func TestAIRequestValidator_ValidateRequestType(t *testing.T) {
	validator := NewAIRequestValidator()

	tests := []struct {
		name        string
		requestType string
		want        db.RequestType
		wantErr     bool
	}{
		{name: "parse workout", requestType: "parse_workout", want: db.RequestParseWorkout},
		{name: "recovery prediction", requestType: "recovery_prediction", want: db.RequestRecoveryPrediction},
		{name: "empty", requestType: "", wantErr: true},
		{name: "unknown", requestType: "dance", wantErr: true},
		{name: "wrong case", requestType: "Parse_Workout", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateRequestType(tt.requestType)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequestType() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateRequestType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAIRequestValidator_ValidateText(t *testing.T) {
	validator := NewAIRequestValidator()

	if err := validator.ValidateText(strings.Repeat("a", MaxTextLength)); err != nil {
		t.Errorf("ValidateText() at limit error = %v", err)
	}
	if err := validator.ValidateText(strings.Repeat("ж", MaxTextLength)); err != nil {
		t.Errorf("ValidateText() counts bytes instead of characters: %v", err)
	}
	if err := validator.ValidateText(strings.Repeat("a", MaxTextLength+1)); err == nil {
		t.Error("ValidateText() expected error over the limit")
	}
}

func TestAIRequestValidator_ValidateData(t *testing.T) {
	validator := NewAIRequestValidator()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "absent", data: "", wantErr: false},
		{name: "object", data: `{"sleep_hours": 7}`, wantErr: false},
		{name: "array", data: `[1, 2]`, wantErr: true},
		{name: "malformed", data: `{"sleep_hours":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateData(json.RawMessage(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateData() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAIRequestValidator_ValidateImage(t *testing.T) {
	validator := NewAIRequestValidator()

	tests := []struct {
		name      string
		image     string
		mediaType string
		wantErr   bool
		errMsg    string
	}{
		{name: "no image", wantErr: false},
		{name: "image without media type", image: "aGVsbG8=", wantErr: false},
		{name: "png", image: "aGVsbG8=", mediaType: "image/png", wantErr: false},
		{name: "pdf", image: "aGVsbG8=", mediaType: "application/pdf", wantErr: true},
		{name: "media type alone", mediaType: "image/png", wantErr: true, errMsg: "media_type requires an image"},
		{name: "too large", image: strings.Repeat("A", (MaxImageBytes/3)*4+8), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImage(tt.image, tt.mediaType)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.errMsg != "" && err.Error() != tt.errMsg {
				t.Errorf("ValidateImage() error message = %v, want %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestAIRequestValidator_ValidateAIRequest(t *testing.T) {
	validator := NewAIRequestValidator()

	tests := []struct {
		name        string
		requestType db.RequestType
		text        string
		image       string
		wantErr     bool
	}{
		{name: "workout with text", requestType: db.RequestParseWorkout, text: "ran 5k", wantErr: false},
		{name: "workout without text", requestType: db.RequestParseWorkout, text: "  ", wantErr: true},
		{name: "coach without text", requestType: db.RequestCoachChat, wantErr: true},
		{name: "photo with image", requestType: db.RequestPhotoAnalysis, image: "aGVsbG8=", wantErr: false},
		{name: "photo without image", requestType: db.RequestPhotoAnalysis, text: "dinner", wantErr: true},
		{name: "pattern detection empty", requestType: db.RequestPatternDetection, wantErr: false},
		{name: "load analysis empty", requestType: db.RequestLoadAnalysis, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateAIRequest(tt.requestType, tt.text, nil, tt.image, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAIRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAIRequestValidator_ValidateConversationLimit(t *testing.T) {
	validator := NewAIRequestValidator()

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "default", raw: "", want: 20},
		{name: "explicit", raw: "50", want: 50},
		{name: "max", raw: "100", want: 100},
		{name: "zero", raw: "0", wantErr: true},
		{name: "over max", raw: "101", wantErr: true},
		{name: "not a number", raw: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateConversationLimit(tt.raw, 20)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConversationLimit() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateConversationLimit() = %v, want %v", got, tt.want)
			}
		})
	}
}
