package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/app"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/conversation"
	"fitcoach/internal/service/handlers"
	"fitcoach/internal/service/patterns"
	"fitcoach/internal/service/usage"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUnknownRequestType is returned for request kinds with no handler
var ErrUnknownRequestType = errors.New("unknown request type")

const (
	processingFailed = "Processing failed"
	unknownTypeLabel = "unknown"
)

// Response is the uniform envelope returned for every AI request
type Response struct {
	Success          bool    `json:"success"`
	Data             any     `json:"data,omitempty"`
	Confidence       float64 `json:"confidence"`
	TokensUsed       int     `json:"tokens_used"`
	CostCents        float64 `json:"cost_cents"`
	ModelUsed        string  `json:"model_used,omitempty"`
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	Error            string  `json:"error,omitempty"`
	QuotaExceeded    bool    `json:"quota_exceeded,omitempty"`
	InvalidInput     bool    `json:"invalid_input,omitempty"`
}

type handlerSet struct {
	workout  *handlers.WorkoutParser
	food     *handlers.FoodParser
	coach    *handlers.Coach
	voice    *handlers.VoiceInterpreter
	photo    *handlers.PhotoAnalyzer
	pattern  *handlers.PatternAnalyzer
	load     *handlers.LoadAnalyzer
	recovery *handlers.RecoveryPredictor
}

// Orchestrator is the single entry point for AI requests: it enforces the
// tier quota, loads the user context, dispatches to the handler of the
// request type, and records cost and learned patterns
type Orchestrator struct {
	db       db.Database
	config   *app.Config
	quota    *usage.QuotaChecker
	pricer   *usage.Pricer
	loader   *ContextLoader
	handlers handlerSet
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator from the application config
func NewOrchestrator(cfg *app.Config) *Orchestrator {
	o := &Orchestrator{
		db:     cfg.DB,
		config: cfg,
		pricer: usage.NewPricer(cfg.AIConfig()),
		now:    time.Now,
	}
	clock := func() time.Time { return o.now() }

	o.quota = usage.NewQuotaChecker(cfg.DB, cfg.AIConfig(), usage.NewBillingPeriod(time.UTC), clock)
	o.loader = NewContextLoader(cfg.DB, cfg.Cache, clock)
	o.handlers = handlerSet{
		workout:  handlers.NewWorkoutParser(cfg.Gateway),
		food:     handlers.NewFoodParser(cfg.Gateway),
		coach:    handlers.NewCoach(cfg.Gateway, conversation.NewConversationService(cfg.DB), nil),
		voice:    handlers.NewVoiceInterpreter(cfg.Gateway),
		photo:    handlers.NewPhotoAnalyzer(cfg.Gateway),
		pattern:  handlers.NewPatternAnalyzer(patterns.NewDetector(cfg.DB, patterns.DefaultLookbackWeeks)),
		load:     handlers.NewLoadAnalyzer(cfg.Gateway),
		recovery: handlers.NewRecoveryPredictor(cfg.Gateway),
	}
	return o
}

// handlerFor maps every request type to its handler
func (o *Orchestrator) handlerFor(t db.RequestType) (handlers.Handler, error) {
	switch t {
	case db.RequestParseWorkout:
		return o.handlers.workout, nil
	case db.RequestParseFood:
		return o.handlers.food, nil
	case db.RequestCoachChat:
		return o.handlers.coach, nil
	case db.RequestVoiceTranscription:
		return o.handlers.voice, nil
	case db.RequestPhotoAnalysis:
		return o.handlers.photo, nil
	case db.RequestPatternDetection:
		return o.handlers.pattern, nil
	case db.RequestLoadAnalysis:
		return o.handlers.load, nil
	case db.RequestRecoveryPrediction:
		return o.handlers.recovery, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRequestType, t)
}

// ProcessRequest runs one AI request end to end. It never returns an error:
// failures are reported through the response envelope.
func (o *Orchestrator) ProcessRequest(ctx context.Context, userID string, requestType db.RequestType, input handlers.Input) *Response {
	start := time.Now()
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":      userID,
		"request_type": requestType,
	})
	log.Debug("Processing AI request")

	handler, err := o.handlerFor(requestType)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Rejected AI request")
		metrics.AIRequests.WithLabelValues(unknownTypeLabel, metrics.StatusFailure).Inc()
		return &Response{Error: err.Error(), ProcessingTimeMS: elapsedMS(start)}
	}

	defer func() {
		metrics.RequestDuration.WithLabelValues(string(requestType)).Observe(time.Since(start).Seconds())
	}()
	modelCfg, _ := o.config.AIConfig().ModelFor(requestType)

	tier, err := o.tierOf(ctx, userID)
	if err != nil {
		return o.fail(ctx, log, userID, requestType, tier, modelCfg, start, err)
	}
	log = log.WithField("tier", tier)

	if err := o.quota.Check(ctx, userID, tier, requestType); err != nil {
		var quotaErr *usage.QuotaError
		if errors.As(err, &quotaErr) {
			log.WithFields(logrus.Fields{
				"used":  quotaErr.Used,
				"limit": quotaErr.Limit,
			}).Info("AI request blocked by monthly limit")
			metrics.QuotaRejections.WithLabelValues(string(requestType), tier).Inc()
			metrics.AIRequests.WithLabelValues(string(requestType), metrics.StatusRejected).Inc()
			return &Response{
				Error:            quotaErr.Error(),
				QuotaExceeded:    true,
				ProcessingTimeMS: elapsedMS(start),
			}
		}
		return o.fail(ctx, log, userID, requestType, tier, modelCfg, start, err)
	}

	uc, err := o.loader.Load(ctx, userID)
	if err != nil {
		return o.fail(ctx, log, userID, requestType, tier, modelCfg, start, err)
	}

	result, err := handler.Process(ctx, input, uc, modelCfg)
	if err != nil {
		return o.fail(ctx, log, userID, requestType, tier, modelCfg, start, err)
	}

	model := result.Model
	if model == "" {
		model = modelCfg.Model
	}
	tokens := result.TokensUsed()
	cost, priced := o.pricer.Cost(model, tokens)
	if !priced && tokens > 0 {
		log.WithField("model", model).Warn("No pricing for model, recording zero cost")
	}

	elapsed := elapsedMS(start)
	response := &Response{
		Success:          true,
		Data:             result.Data,
		Confidence:       result.Confidence,
		TokensUsed:       tokens,
		CostCents:        cost,
		ModelUsed:        model,
		ProcessingTimeMS: elapsed,
	}

	o.recordInteraction(ctx, log, userID, requestType, input, response)
	o.recordUsage(ctx, log, &db.UsageRecord{
		UserID:       userID,
		RequestType:  requestType,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostCents:    cost,
		Success:      true,
		Tier:         tier,
		Model:        model,
	})
	o.learn(ctx, userID, input, result)

	metrics.AIRequests.WithLabelValues(string(requestType), metrics.StatusSuccess).Inc()
	metrics.AITokens.WithLabelValues(string(requestType)).Add(float64(tokens))
	metrics.AICostCents.WithLabelValues(string(requestType)).Add(cost)

	log.WithFields(logrus.Fields{
		"model":              model,
		"tokens":             tokens,
		"cost_cents":         cost,
		"confidence":         result.Confidence,
		"processing_time_ms": elapsed,
	}).Info("AI request completed")

	return response
}

// UsageSummary reports the caller's usage against the limits of their tier
func (o *Orchestrator) UsageSummary(ctx context.Context, userID string) (*usage.Summary, error) {
	tier, err := o.tierOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.quota.Summary(ctx, userID, tier)
}

// tierOf returns the subscription tier of the user, the lowest tier when
// the user has no profile
func (o *Orchestrator) tierOf(ctx context.Context, userID string) (string, error) {
	profile, err := o.db.GetProfile(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return o.quota.NormalizeTier(""), nil
	}
	if err != nil {
		return o.quota.NormalizeTier(""), fmt.Errorf("failed to get profile: %w", err)
	}
	return o.quota.NormalizeTier(profile.SubscriptionTier), nil
}

// fail logs the error, writes a failed usage record and builds the
// failure envelope. Invalid input keeps its message; anything else is
// reported generically.
func (o *Orchestrator) fail(ctx context.Context, log *logrus.Entry, userID string, requestType db.RequestType, tier string, modelCfg config.ModelConfig, start time.Time, err error) *Response {
	log.WithField("error", err.Error()).Error("AI request failed")
	metrics.AIRequests.WithLabelValues(string(requestType), metrics.StatusFailure).Inc()

	o.recordUsage(ctx, log, &db.UsageRecord{
		UserID:      userID,
		RequestType: requestType,
		Success:     false,
		Tier:        tier,
		Model:       modelCfg.Model,
	})

	if errors.Is(err, handlers.ErrInvalidInput) {
		return &Response{Error: err.Error(), InvalidInput: true, ProcessingTimeMS: elapsedMS(start)}
	}
	return &Response{Error: processingFailed, ProcessingTimeMS: elapsedMS(start)}
}

func (o *Orchestrator) recordUsage(ctx context.Context, log *logrus.Entry, record *db.UsageRecord) {
	record.ID = uuid.New().String()
	record.CreatedAt = o.now()
	if err := o.db.AddUsageRecord(ctx, record); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to record usage")
	}
}

func (o *Orchestrator) recordInteraction(ctx context.Context, log *logrus.Entry, userID string, requestType db.RequestType, input handlers.Input, response *Response) {
	// image payloads are not kept in the audit log
	input.Image = ""
	in, err := json.Marshal(input)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Failed to encode interaction input")
		return
	}
	out, err := json.Marshal(response.Data)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Failed to encode interaction output")
		return
	}

	interaction := &db.Interaction{
		ID:               uuid.New().String(),
		UserID:           userID,
		RequestType:      requestType,
		Input:            in,
		Output:           out,
		Confidence:       response.Confidence,
		Model:            response.ModelUsed,
		TokensUsed:       response.TokensUsed,
		ProcessingTimeMS: response.ProcessingTimeMS,
		CreatedAt:        o.now(),
	}
	if err := o.db.AddInteraction(ctx, interaction); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to record interaction")
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
