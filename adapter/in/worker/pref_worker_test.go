package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"preference_server/adapter/out/messaging"
	"preference_server/core/domain"
	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
)

type fakeUseCase struct {
	mu    sync.Mutex
	calls []*domain.UserDataEntry
	errs  map[string]error
}

func (f *fakeUseCase) ProcessEntries(ctx context.Context, dataType domain.DataType, entries []domain.RawEntry, prior domain.PreferenceState) (domain.PreferenceState, error) {
	return prior.Clone(), nil
}

func (f *fakeUseCase) ProcessUserData(ctx context.Context, data *domain.UserDataEntry) (*domain.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if err := f.errs[data.UserID]; err != nil {
		return nil, err
	}
	return &domain.ProcessingResult{UserID: data.UserID, DataType: data.DataType, EntriesProcessed: len(data.Entries)}, nil
}

func (f *fakeUseCase) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	return nil, apperr.NotFound("preferences")
}

func (f *fakeUseCase) GetHistory(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error) {
	return nil, nil
}

type recordingAcker struct {
	mu  sync.Mutex
	ids []string
}

func (a *recordingAcker) Ack(ctx context.Context, stream, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
	return nil
}

func jobPayload(t *testing.T, userID, dataType, entries string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(out.ProcessJob{
		JobID:    "job-" + userID,
		UserID:   userID,
		DataType: dataType,
		Entries:  json.RawMessage(entries),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestPreferenceProcessor_DecodesEntries(t *testing.T) {
	uc := &fakeUseCase{}
	p := NewPreferenceProcessor(uc)

	payload := jobPayload(t, "u1", "purchase", `[{"items":[{"name":"iPhone 15","price":999}]}, "garbage"]`)
	if err := p.ProcessJob(context.Background(), NewMessage(JobPreferenceProcess, payload)); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if len(uc.calls) != 1 {
		t.Fatalf("calls = %d", len(uc.calls))
	}
	got := uc.calls[0]
	if got.UserID != "u1" || got.DataType != domain.DataTypePurchase {
		t.Errorf("data = %+v", got)
	}
	if len(got.Entries) != 1 || got.Entries[0].Purchase == nil || got.Entries[0].Purchase.Items[0].Name != "iPhone 15" {
		t.Errorf("entries = %+v", got.Entries)
	}
}

func TestPreferenceProcessor_Errors(t *testing.T) {
	tests := []struct {
		name          string
		payload       json.RawMessage
		useCaseErr    error
		wantPermanent bool
	}{
		{
			name:          "malformed payload",
			payload:       json.RawMessage(`{not json`),
			wantPermanent: true,
		},
		{
			name:          "entries not a list",
			payload:       jobPayload(t, "u1", "purchase", `{"items":[]}`),
			wantPermanent: true,
		},
		{
			name:          "client error",
			payload:       jobPayload(t, "u1", "bogus", `[]`),
			useCaseErr:    apperr.New(apperr.CodeUnknownDataType, "unknown data type", 400),
			wantPermanent: true,
		},
		{
			name:       "server error",
			payload:    jobPayload(t, "u1", "purchase", `[]`),
			useCaseErr: apperr.DatabaseError("load", errors.New("down")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeUseCase{errs: map[string]error{"u1": tt.useCaseErr}}
			err := NewPreferenceProcessor(uc).ProcessJob(context.Background(), NewMessage(JobPreferenceProcess, tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err %v)", IsPermanent(err), tt.wantPermanent, err)
			}
		})
	}
}

func TestHandler_UnknownType(t *testing.T) {
	h := NewHandler(NewPreferenceProcessor(&fakeUseCase{}))
	err := h.Process(context.Background(), NewMessage("other.job", nil))
	if !IsPermanent(err) {
		t.Errorf("err = %v, want permanent", err)
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("base")
	err := Permanent(base)
	if !errors.Is(err, base) || !IsPermanent(err) {
		t.Errorf("Permanent lost identity: %v", err)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(base) {
		t.Error("plain error reported permanent")
	}
}

func TestPool_AcksSettledJobs(t *testing.T) {
	uc := &fakeUseCase{errs: map[string]error{
		"transient": apperr.DatabaseError("save", errors.New("down")),
	}}
	acker := &recordingAcker{}
	p := NewPool(NewHandler(NewPreferenceProcessor(uc)), acker, &PoolConfig{Workers: 2, WorkerChanSize: 4}, zerolog.Nop())
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deliveries := []messaging.Delivery{
		{Stream: messaging.StreamPreferenceProcess, ID: "1-0", Data: jobPayload(t, "ok", "search", `[{"query":"phone"}]`), Attempts: 1},
		{Stream: messaging.StreamPreferenceProcess, ID: "2-0", Data: jobPayload(t, "transient", "search", `[]`), Attempts: 1},
		{Stream: messaging.StreamPreferenceProcess, ID: "3-0", Data: []byte(`{broken`), Attempts: 2},
	}
	for _, d := range deliveries {
		if err := p.Dispatch(context.Background(), d); err != nil {
			t.Fatalf("Dispatch(%s): %v", d.ID, err)
		}
	}
	p.Stop()

	sort.Strings(acker.ids)
	if len(acker.ids) != 2 || acker.ids[0] != "1-0" || acker.ids[1] != "3-0" {
		t.Errorf("acked = %v, want [1-0 3-0]", acker.ids)
	}
	m := p.GetMetrics()
	if m.JobsProcessed != 1 || m.JobsFailed != 1 || m.JobsDropped != 1 || m.InFlight != 0 {
		t.Errorf("metrics = %+v", m)
	}

	if err := p.Dispatch(context.Background(), deliveries[0]); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Dispatch after Stop = %v, want ErrPoolStopped", err)
	}
}

func TestPool_JobTimeout(t *testing.T) {
	p := NewPool(nil, nil, &PoolConfig{
		JobTimeout:       5,
		JobTimeoutByType: map[JobType]time.Duration{JobPreferenceProcess: 7},
	}, zerolog.Nop())
	if got := p.jobTimeout(JobPreferenceProcess); got != 7 {
		t.Errorf("preference timeout = %v", got)
	}
	if got := p.jobTimeout("other"); got != 5 {
		t.Errorf("default timeout = %v", got)
	}
}
