package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/app"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	conversationService "fitcoach/internal/service/conversation"
	aiHandlers "fitcoach/internal/service/handlers"
	"fitcoach/internal/service/orchestrator"
	"fitcoach/internal/service/usage"
	"fitcoach/pkg/validation"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds request bodies; images arrive base64 encoded
const maxBodyBytes = 8 << 20

// Request/Response types

type AIRequest struct {
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Image     string          `json:"image,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
}

type ConversationTurnData struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationTurnData `json:"conversations"`
}

// Processor runs AI requests; implemented by *orchestrator.Orchestrator
type Processor interface {
	ProcessRequest(ctx context.Context, userID string, requestType db.RequestType, input aiHandlers.Input) *orchestrator.Response
	UsageSummary(ctx context.Context, userID string) (*usage.Summary, error)
}

// AIHandlers serves the AI endpoints
type AIHandlers struct {
	config              *app.Config
	validator           *validation.AIRequestValidator
	processor           Processor
	conversationService *conversationService.ConversationService
}

// NewAIHandlers creates a new AIHandlers
func NewAIHandlers(config *app.Config, processor Processor) *AIHandlers {
	return &AIHandlers{
		config:              config,
		validator:           validation.NewAIRequestValidator(),
		processor:           processor,
		conversationService: conversationService.NewConversationService(config.DB),
	}
}

// ProcessHandler is POST /api/ai/{type}
func (h *AIHandlers) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "Unauthenticated", nil)
		return
	}

	requestType, err := h.validator.ValidateRequestType(r.PathValue("type"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Unknown request type", err)
		return
	}

	var req AIRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.ValidateAIRequest(requestType, req.Text, req.Data, req.Image, req.MediaType); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":      userID,
		"request_type": requestType,
		"text_chars":   len(req.Text),
		"has_image":    req.Image != "",
	}).Info("AI request received")

	resp := h.processor.ProcessRequest(r.Context(), userID, requestType, aiHandlers.Input{
		Text:      req.Text,
		Data:      req.Data,
		Image:     req.Image,
		MediaType: req.MediaType,
	})

	writeJSON(w, statusFor(resp), resp)
}

// UsageHandler is GET /api/ai/usage
func (h *AIHandlers) UsageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "Unauthenticated", nil)
		return
	}

	summary, err := h.processor.UsageSummary(r.Context(), userID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Error getting usage summary")
		sendError(w, http.StatusInternalServerError, "Error getting usage", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ConversationsHandler is GET /api/ai/conversations?limit=n
func (h *AIHandlers) ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "Unauthenticated", nil)
		return
	}

	limit, err := h.validator.ValidateConversationLimit(r.URL.Query().Get("limit"), conversationService.DefaultListLimit)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	turns, err := h.conversationService.Recent(r.Context(), userID, limit)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Error getting conversations")
		sendError(w, http.StatusInternalServerError, "Error getting conversations", err)
		return
	}

	conversations := make([]ConversationTurnData, len(turns))
	for i, turn := range turns {
		conversations[i] = ConversationTurnData{
			ID:             turn.ID,
			ConversationID: turn.ConversationID,
			Role:           turn.Role,
			Content:        turn.Content,
			CreatedAt:      turn.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, ConversationsResponse{Conversations: conversations})
}

// statusFor maps an orchestrator response to an HTTP status
func statusFor(resp *orchestrator.Response) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.QuotaExceeded:
		return http.StatusTooManyRequests
	case resp.InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("Error encoding response")
	}
}
