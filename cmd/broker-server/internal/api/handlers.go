// Package api provides HTTP handlers for the broker server REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coregx/broker"
	"github.com/coregx/broker/model"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler holds dependencies for API handlers.
//
// Producers and consumers are created on first use and cached by name, so
// repeated requests act as the same participant.
type Handler struct {
	broker *broker.Broker
	logger broker.Logger
	audit  broker.AuditRepository

	mu        sync.Mutex
	producers map[string]*broker.Producer
	consumers map[consumerKey]*broker.Consumer
}

type consumerKey struct {
	topic string
	name  string
}

// NewHandler creates a new API handler.
func NewHandler(b *broker.Broker, logger broker.Logger) *Handler {
	return &Handler{
		broker:    b,
		logger:    logger,
		producers: make(map[string]*broker.Producer),
		consumers: make(map[consumerKey]*broker.Consumer),
	}
}

// WithAudit enables the audit query endpoints backed by repo.
func (h *Handler) WithAudit(repo broker.AuditRepository) *Handler {
	h.audit = repo
	return h
}

// CreateTopicRequest represents a topic creation request.
type CreateTopicRequest struct {
	Name string `json:"name"`
}

// PublishRequest represents a publish message request.
type PublishRequest struct {
	Producer string `json:"producer"`
	Body     string `json:"body"`
}

// SubscribeRequest represents a subscription request.
type SubscribeRequest struct {
	Name string `json:"name"`
}

// ConsumeRequest represents a consumption request.
type ConsumeRequest struct {
	Consumer string `json:"consumer"`
}

// TopicInfo describes a registered topic.
type TopicInfo struct {
	Name        string   `json:"name"`
	Subscribers []string `json:"subscribers"`
	Pending     int      `json:"pending"`
	Consumed    int      `json:"consumed"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Routes builds the router. metrics, when not nil, is mounted at /metrics.
func (h *Handler) Routes(metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(h.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/topics", h.HandleListTopics)
		r.Post("/topics", h.HandleCreateTopic)

		r.Route("/topics/{topic}", func(r chi.Router) {
			r.Delete("/", h.HandleDeleteTopic)
			r.Get("/messages", h.HandleListMessages)
			r.Post("/messages", h.HandlePublish)
			r.Post("/messages/{id}/consume", h.HandleConsume)
			r.Post("/subscribers", h.HandleSubscribe)
			r.Delete("/subscribers/{name}", h.HandleUnsubscribe)
			if h.audit != nil {
				r.Get("/audit", h.HandleTopicAudit)
				r.Get("/sweeps", h.HandleTopicSweeps)
			}
		})

		if h.audit != nil {
			r.Get("/messages/{id}/audit", h.HandleMessageAudit)
		}
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"topics":    len(h.broker.Topics()),
	}
	h.respondSuccess(w, http.StatusOK, health, "")
}

// HandleListTopics handles GET /api/v1/topics
func (h *Handler) HandleListTopics(w http.ResponseWriter, _ *http.Request) {
	names := h.broker.Topics()
	topics := make([]TopicInfo, 0, len(names))
	for _, name := range names {
		info, err := h.topicInfo(name)
		if err != nil {
			// Removed between listing and lookup.
			continue
		}
		topics = append(topics, info)
	}
	h.respondSuccess(w, http.StatusOK, topics, "")
}

// HandleCreateTopic handles POST /api/v1/topics
func (h *Handler) HandleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.broker.CreateTopic(req.Name); err != nil {
		h.respondBrokerError(w, "Failed to create topic", err)
		return
	}

	info, err := h.topicInfo(req.Name)
	if err != nil {
		h.respondBrokerError(w, "Failed to create topic", err)
		return
	}
	h.respondSuccess(w, http.StatusCreated, info, "Topic created successfully")
}

// HandleDeleteTopic handles DELETE /api/v1/topics/{topic}
func (h *Handler) HandleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "topic")
	if err := h.broker.RemoveTopic(name); err != nil {
		h.respondBrokerError(w, "Failed to remove topic", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, nil, "Topic removed successfully")
}

// HandlePublish handles POST /api/v1/topics/{topic}/messages
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topic")

	var req PublishRequest
	if !h.decode(w, r, &req) {
		return
	}

	topic, err := h.broker.GetTopic(topicName)
	if err != nil {
		h.respondBrokerError(w, "Failed to publish message", err)
		return
	}
	producer, err := h.producer(req.Producer)
	if err != nil {
		h.respondBrokerError(w, "Failed to publish message", err)
		return
	}
	if err := producer.RegisterTopic(topic); err != nil {
		h.respondBrokerError(w, "Failed to publish message", err)
		return
	}

	msg, err := producer.SendTo(topicName, req.Body)
	if err != nil {
		h.respondBrokerError(w, "Failed to publish message", err)
		return
	}
	h.respondSuccess(w, http.StatusCreated, msg.View(h.broker.Now()), "Message published successfully")
}

// HandleListMessages handles GET /api/v1/topics/{topic}/messages?state=pending|consumed|all
func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topic")

	var (
		messages []*model.Message
		err      error
	)
	switch state := r.URL.Query().Get("state"); state {
	case "", "pending":
		messages, err = h.broker.ListNotConsumed(topicName)
	case "consumed":
		messages, err = h.broker.ListConsumed(topicName)
	case "all":
		messages, err = h.broker.Store().List(topicName)
	default:
		h.respondError(w, http.StatusBadRequest, "state must be pending, consumed or all", broker.ErrCodeValidation)
		return
	}
	if err != nil {
		h.respondBrokerError(w, "Failed to list messages", err)
		return
	}

	h.respondSuccess(w, http.StatusOK, model.Views(messages, h.broker.Now()), "")
}

// HandleSubscribe handles POST /api/v1/topics/{topic}/subscribers
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topic")

	var req SubscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	consumer, err := h.consumer(topicName, req.Name)
	if err != nil {
		h.respondBrokerError(w, "Failed to subscribe", err)
		return
	}
	if err := h.broker.Subscribe(topicName, consumer); err != nil {
		h.respondBrokerError(w, "Failed to subscribe", err)
		return
	}

	info, err := h.topicInfo(topicName)
	if err != nil {
		h.respondBrokerError(w, "Failed to subscribe", err)
		return
	}
	h.respondSuccess(w, http.StatusCreated, info, "Subscribed successfully")
}

// HandleUnsubscribe handles DELETE /api/v1/topics/{topic}/subscribers/{name}
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topic")

	consumer, err := h.consumer(topicName, chi.URLParam(r, "name"))
	if err != nil {
		h.respondBrokerError(w, "Failed to unsubscribe", err)
		return
	}
	if err := h.broker.Unsubscribe(topicName, consumer); err != nil {
		h.respondBrokerError(w, "Failed to unsubscribe", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, nil, "Unsubscribed successfully")
}

// HandleConsume handles POST /api/v1/topics/{topic}/messages/{id}/consume
func (h *Handler) HandleConsume(w http.ResponseWriter, r *http.Request) {
	topicName := chi.URLParam(r, "topic")

	var req ConsumeRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.broker.Store().Get(topicName, chi.URLParam(r, "id"))
	if err != nil {
		h.respondBrokerError(w, "Failed to consume message", err)
		return
	}
	consumer, err := h.consumer(topicName, req.Consumer)
	if err != nil {
		h.respondBrokerError(w, "Failed to consume message", err)
		return
	}
	if err := consumer.Attempt(msg); err != nil {
		h.respondBrokerError(w, "Failed to consume message", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, msg.View(h.broker.Now()), "Message consumed successfully")
}

// HandleTopicAudit handles GET /api/v1/topics/{topic}/audit?limit=N
func (h *Handler) HandleTopicAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.audit.FindByTopic(r.Context(), chi.URLParam(r, "topic"), limitParam(r))
	if err != nil {
		if broker.IsNoData(err) {
			h.respondSuccess(w, http.StatusOK, []model.ConsumptionRecord{}, "No audit records found")
			return
		}
		h.respondBrokerError(w, "Failed to query audit trail", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, records, "")
}

// HandleTopicSweeps handles GET /api/v1/topics/{topic}/sweeps?limit=N
func (h *Handler) HandleTopicSweeps(w http.ResponseWriter, r *http.Request) {
	records, err := h.audit.FindSweeps(r.Context(), chi.URLParam(r, "topic"), limitParam(r))
	if err != nil {
		if broker.IsNoData(err) {
			h.respondSuccess(w, http.StatusOK, []model.SweepRecord{}, "No sweeps found")
			return
		}
		h.respondBrokerError(w, "Failed to query sweeps", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, records, "")
}

// HandleMessageAudit handles GET /api/v1/messages/{id}/audit
func (h *Handler) HandleMessageAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.audit.FindByMessageID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if broker.IsNoData(err) {
			h.respondSuccess(w, http.StatusOK, []model.ConsumptionRecord{}, "No audit records found")
			return
		}
		h.respondBrokerError(w, "Failed to query audit trail", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, records, "")
}

// limitParam parses ?limit=, defaulting to 100.
func limitParam(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return 100
}

func (h *Handler) topicInfo(name string) (TopicInfo, error) {
	topic, err := h.broker.GetTopic(name)
	if err != nil {
		return TopicInfo{}, err
	}
	pending, err := h.broker.ListNotConsumed(name)
	if err != nil {
		return TopicInfo{}, err
	}
	consumed, err := h.broker.ListConsumed(name)
	if err != nil {
		return TopicInfo{}, err
	}

	subscribers := topic.Subscribers()
	names := make([]string, 0, len(subscribers))
	for _, s := range subscribers {
		names = append(names, s.Name())
	}
	return TopicInfo{Name: name, Subscribers: names, Pending: len(pending), Consumed: len(consumed)}, nil
}

func (h *Handler) producer(name string) (*broker.Producer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.producers[name]; ok {
		return p, nil
	}
	p, err := h.broker.NewProducer(name, "")
	if err != nil {
		return nil, err
	}
	h.producers[name] = p
	return p, nil
}

func (h *Handler) consumer(topicName, name string) (*broker.Consumer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := consumerKey{topic: topicName, name: name}
	if c, ok := h.consumers[key]; ok {
		return c, nil
	}
	c, err := h.broker.NewConsumer(name, topicName)
	if err != nil {
		return nil, err
	}
	h.consumers[key] = c
	return c, nil
}

// decode reads a JSON body into v and answers 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return false
	}
	return true
}

// statusFor maps broker error codes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, broker.ErrDuplicateTopic):
		return http.StatusConflict
	case errors.Is(err, broker.ErrUnknownTopic), errors.Is(err, broker.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrExpiredMessage):
		return http.StatusGone
	case errors.Is(err, broker.ErrUnboundTopic), errors.Is(err, broker.ErrNilMessage),
		broker.HasCode(err, broker.ErrCodeValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondBrokerError sends an error response derived from a broker error.
func (h *Handler) respondBrokerError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", message, err)
	}

	code := ""
	var brokerErr *broker.Error
	if errors.As(err, &brokerErr) {
		code = brokerErr.Code
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: err.Error(),
	})
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// logRequests logs HTTP requests.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		h.logger.Debugf("%s %s - %v (request_id=%s)", r.Method, r.URL.Path, time.Since(start), chimw.GetReqID(r.Context()))
	})
}
