package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"preference_server/core/domain"
	"preference_server/core/port/in"
	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
)

// PreferenceProcessor runs queued processing jobs.
type PreferenceProcessor struct {
	preferences in.PreferenceUseCase
	log         zerolog.Logger
}

func NewPreferenceProcessor(preferences in.PreferenceUseCase) *PreferenceProcessor {
	return &PreferenceProcessor{
		preferences: preferences,
		log:         logger.Component("preference_processor"),
	}
}

// ProcessJob decodes an out.ProcessJob payload and runs ProcessUserData.
// Malformed payloads and client errors fail permanently.
func (p *PreferenceProcessor) ProcessJob(ctx context.Context, msg *Message) error {
	var job out.ProcessJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return Permanent(fmt.Errorf("decode process job: %w", err))
	}

	data, err := userDataFromJob(&job)
	if err != nil {
		return Permanent(err)
	}

	result, err := p.preferences.ProcessUserData(ctx, data)
	if err != nil {
		if status := apperr.GetHTTPStatus(err); status >= 400 && status < 500 {
			return Permanent(err)
		}
		return err
	}

	p.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", result.UserID).
		Int("entries", result.EntriesProcessed).
		Int("preferences", result.PreferencesCount).
		Int64("attempt", msg.Attempts).
		Msg("processing job completed")
	return nil
}

func userDataFromJob(job *out.ProcessJob) (*domain.UserDataEntry, error) {
	dataType := domain.DataType(job.DataType)

	var raws []json.RawMessage
	if len(job.Entries) > 0 && string(job.Entries) != "null" {
		if err := json.Unmarshal(job.Entries, &raws); err != nil {
			return nil, fmt.Errorf("decode entries: %w", err)
		}
	}

	entries, skipped := domain.DecodeEntries(dataType, raws)
	metrics.RecordSkipped(job.DataType, "malformed", skipped)

	return &domain.UserDataEntry{
		UserID:   job.UserID,
		Email:    job.Email,
		DataType: dataType,
		Entries:  entries,
	}, nil
}
