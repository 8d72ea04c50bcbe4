package http

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"preference_server/core/domain"
	"preference_server/core/port/in"
	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
	"preference_server/pkg/metrics"
	"preference_server/pkg/response"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// PreferenceHandler handles data processing and preference queries.
type PreferenceHandler struct {
	preferences in.PreferenceUseCase
	publisher   out.JobPublisher
}

// NewPreferenceHandler creates a handler. A nil publisher disables the
// asynchronous endpoint.
func NewPreferenceHandler(preferences in.PreferenceUseCase, publisher out.JobPublisher) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences, publisher: publisher}
}

// RegisterData registers the processing routes behind the given middleware.
func (h *PreferenceHandler) RegisterData(router fiber.Router, handlers ...fiber.Handler) {
	data := router.Group("/data", handlers...)
	data.Post("/process", h.Process)
	data.Post("/process/async", h.ProcessAsync)
}

// RegisterUsers registers the per-user query routes behind the given middleware.
func (h *PreferenceHandler) RegisterUsers(router fiber.Router, handlers ...fiber.Handler) {
	users := router.Group("/users/:userId", handlers...)
	users.Get("/preferences", h.GetPreferences)
	users.Get("/preferences/history", h.GetHistory)
}

// ProcessRequest is one batch of behavioral entries for a user.
type ProcessRequest struct {
	UserID   string            `json:"user_id" validate:"required,max=128"`
	Email    string            `json:"email" validate:"omitempty,email"`
	DataType string            `json:"data_type" validate:"required,datatype"`
	Entries  []json.RawMessage `json:"entries" validate:"max=1000"`
}

// ProcessResponse is returned by the synchronous endpoint.
type ProcessResponse struct {
	Status           string   `json:"status"`
	UserID           string   `json:"user_id"`
	PreferencesCount int      `json:"preferences_count"`
	EntriesProcessed int      `json:"entries_processed"`
	EntriesSkipped   int      `json:"entries_skipped"`
	TopCategories    []string `json:"top_categories,omitempty"`
}

// Process runs the full processing cycle and answers with its result.
func (h *PreferenceHandler) Process(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := authorizeUser(c, req.UserID); err != nil {
		return err
	}

	dataType := domain.DataType(req.DataType)
	entries, skipped := domain.DecodeEntries(dataType, req.Entries)
	metrics.RecordSkipped(req.DataType, "malformed", skipped)

	result, err := h.preferences.ProcessUserData(c.UserContext(), &domain.UserDataEntry{
		UserID:   req.UserID,
		Email:    req.Email,
		DataType: dataType,
		Entries:  entries,
	})
	if err != nil {
		return err
	}

	return response.OK(c, ProcessResponse{
		Status:           "success",
		UserID:           result.UserID,
		PreferencesCount: result.PreferencesCount,
		EntriesProcessed: result.EntriesProcessed,
		EntriesSkipped:   skipped,
		TopCategories:    result.TopCategories,
	})
}

// ProcessAsync queues the batch for the worker and answers 202.
func (h *PreferenceHandler) ProcessAsync(c *fiber.Ctx) error {
	if h.publisher == nil {
		return apperr.ServiceUnavailable("job queue", nil)
	}

	var req ProcessRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := authorizeUser(c, req.UserID); err != nil {
		return err
	}

	entries, err := json.Marshal(req.Entries)
	if err != nil {
		return apperr.BadRequest("invalid entries").WithError(err)
	}

	job := &out.ProcessJob{
		JobID:    uuid.NewString(),
		UserID:   req.UserID,
		Email:    req.Email,
		DataType: req.DataType,
		Entries:  entries,
	}
	if err := h.publisher.PublishProcessJob(c.UserContext(), job); err != nil {
		return apperr.ServiceUnavailable("job queue", err)
	}

	return response.Accepted(c, fiber.Map{
		"status":  "queued",
		"job_id":  job.JobID,
		"user_id": job.UserID,
	})
}

func (h *PreferenceHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.preferences.GetPreferences(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return response.OK(c, prefs)
}

func (h *PreferenceHandler) GetHistory(c *fiber.Ctx) error {
	limit := response.Limit(c, defaultHistoryLimit, maxHistoryLimit)
	snapshots, err := h.preferences.GetHistory(c.UserContext(), c.Params("userId"), limit)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, snapshots, &response.Meta{Total: len(snapshots), Limit: limit})
}
