package worker

import (
	"context"
	"fmt"

	"preference_server/pkg/logger"
)

// Handler routes messages to their processor by job type.
type Handler struct {
	preferenceProcessor *PreferenceProcessor
}

func NewHandler(preferenceProcessor *PreferenceProcessor) *Handler {
	return &Handler{preferenceProcessor: preferenceProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobPreferenceProcess:
		return h.preferenceProcessor.ProcessJob(ctx, msg)
	default:
		return Permanent(fmt.Errorf("unknown job type: %s", msg.Type))
	}
}
