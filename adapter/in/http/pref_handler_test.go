package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"preference_server/core/domain"
	"preference_server/core/port/in"
	"preference_server/core/port/out"
	"preference_server/infra/middleware"
	"preference_server/pkg/apperr"
)

// =============================================================================
// Fakes
// =============================================================================

type fakePreferences struct {
	mu        sync.Mutex
	processed []*domain.UserDataEntry
	prefs     map[string]*domain.UserPreferences
	limits    []int
}

func (f *fakePreferences) ProcessEntries(ctx context.Context, dataType domain.DataType, entries []domain.RawEntry, prior domain.PreferenceState) (domain.PreferenceState, error) {
	return prior.Clone(), nil
}

func (f *fakePreferences) ProcessUserData(ctx context.Context, data *domain.UserDataEntry) (*domain.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, data)
	return &domain.ProcessingResult{
		UserID:           data.UserID,
		DataType:         data.DataType,
		EntriesProcessed: len(data.Entries),
		PreferencesCount: 2,
		TopCategories:    []string{"smartphones"},
	}, nil
}

func (f *fakePreferences) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("preferences")
}

func (f *fakePreferences) GetHistory(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	return []*domain.PreferenceSnapshot{{ID: "s1", UserID: userID}}, nil
}

type fakePublisher struct {
	jobs []*out.ProcessJob
	err  error
}

func (p *fakePublisher) PublishProcessJob(ctx context.Context, job *out.ProcessJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeTaxonomy struct{}

func (fakeTaxonomy) Categories() []domain.Category {
	return []domain.Category{{ID: 100, Name: "electronics"}, {ID: 101, Name: "smartphones", Parent: 100}}
}

func (fakeTaxonomy) Schemas() map[string]domain.AttributeSchema {
	return map[string]domain.AttributeSchema{"electronics": {}}
}

func (fakeTaxonomy) KeywordMappings() map[string]string {
	return map[string]string{"iphone": "Smartphones"}
}

func (fakeTaxonomy) Search(ctx context.Context, query string) (*in.QueryAnalysis, error) {
	return &in.QueryAnalysis{Query: query, Categories: map[string]float64{"101": 1}, BestMatch: "101", Source: "rule"}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func newApp(locals map[string]any) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(func(c *fiber.Ctx) error {
		for k, v := range locals {
			c.Locals(k, v)
		}
		return c.Next()
	})
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

// =============================================================================
// Preference handler
// =============================================================================

func TestPreferenceHandler_Process(t *testing.T) {
	tests := []struct {
		name       string
		locals     map[string]any
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:   "own data",
			locals: map[string]any{"user_id": "u1"},
			body: map[string]any{
				"user_id":   "u1",
				"data_type": "purchase",
				"entries":   []any{map[string]any{"items": []any{map[string]any{"name": "iPhone 15", "price": 999}}}, "garbage"},
			},
			wantStatus: 200,
		},
		{
			name:       "admin for any user",
			locals:     map[string]any{"admin": true},
			body:       map[string]any{"user_id": "u2", "data_type": "search", "entries": []any{map[string]any{"query": "phone"}}},
			wantStatus: 200,
		},
		{
			name:       "other user",
			locals:     map[string]any{"user_id": "u1"},
			body:       map[string]any{"user_id": "u2", "data_type": "search"},
			wantStatus: 403,
			wantCode:   apperr.CodeForbidden,
		},
		{
			name:       "unknown data type",
			locals:     map[string]any{"user_id": "u1"},
			body:       map[string]any{"user_id": "u1", "data_type": "clicks"},
			wantStatus: 400,
			wantCode:   apperr.CodeValidationFailed,
		},
		{
			name:       "missing user",
			locals:     map[string]any{"admin": true},
			body:       map[string]any{"data_type": "search"},
			wantStatus: 400,
			wantCode:   apperr.CodeValidationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := &fakePreferences{}
			app := newApp(tt.locals)
			NewPreferenceHandler(prefs, nil).RegisterData(app)

			status, env := do(t, app, "POST", "/data/process", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", env.Error, tt.wantCode)
				}
				if len(prefs.processed) != 0 {
					t.Error("use case called on rejected request")
				}
				return
			}
			if len(prefs.processed) != 1 {
				t.Fatalf("processed = %d", len(prefs.processed))
			}
			var got ProcessResponse
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatal(err)
			}
			if got.Status != "success" || got.PreferencesCount != 2 || got.UserID != tt.body["user_id"] {
				t.Errorf("response = %+v", got)
			}
		})
	}
}

func TestPreferenceHandler_ProcessCountsSkipped(t *testing.T) {
	prefs := &fakePreferences{}
	app := newApp(map[string]any{"user_id": "u1"})
	NewPreferenceHandler(prefs, nil).RegisterData(app)

	_, env := do(t, app, "POST", "/data/process", map[string]any{
		"user_id":   "u1",
		"data_type": "purchase",
		"entries":   []any{map[string]any{"items": []any{map[string]any{"name": "desk"}}}, 42},
	})
	var got ProcessResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.EntriesSkipped != 1 || got.EntriesProcessed != 1 {
		t.Errorf("response = %+v", got)
	}
	if prefs.processed[0].Entries[0].Purchase.Items[0].Name != "desk" {
		t.Errorf("entries = %+v", prefs.processed[0].Entries)
	}
}

func TestPreferenceHandler_ProcessAsync(t *testing.T) {
	body := map[string]any{"user_id": "u1", "data_type": "search", "entries": []any{map[string]any{"query": "running shoes"}}}

	t.Run("queued", func(t *testing.T) {
		pub := &fakePublisher{}
		app := newApp(map[string]any{"user_id": "u1"})
		NewPreferenceHandler(&fakePreferences{}, pub).RegisterData(app)

		status, env := do(t, app, "POST", "/data/process/async", body)
		if status != fiber.StatusAccepted {
			t.Fatalf("status = %d", status)
		}
		if len(pub.jobs) != 1 {
			t.Fatalf("jobs = %d", len(pub.jobs))
		}
		job := pub.jobs[0]
		if job.JobID == "" || job.UserID != "u1" || job.DataType != "search" {
			t.Errorf("job = %+v", job)
		}
		var entries []map[string]any
		if err := json.Unmarshal(job.Entries, &entries); err != nil || entries[0]["query"] != "running shoes" {
			t.Errorf("entries = %s (%v)", job.Entries, err)
		}
		var data map[string]string
		_ = json.Unmarshal(env.Data, &data)
		if data["job_id"] != job.JobID || data["status"] != "queued" {
			t.Errorf("data = %v", data)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		app := newApp(map[string]any{"user_id": "u1"})
		NewPreferenceHandler(&fakePreferences{}, &fakePublisher{err: errors.New("redis down")}).RegisterData(app)
		if status, _ := do(t, app, "POST", "/data/process/async", body); status != 503 {
			t.Errorf("status = %d", status)
		}
	})

	t.Run("no queue", func(t *testing.T) {
		app := newApp(map[string]any{"user_id": "u1"})
		NewPreferenceHandler(&fakePreferences{}, nil).RegisterData(app)
		if status, _ := do(t, app, "POST", "/data/process/async", body); status != 503 {
			t.Errorf("status = %d", status)
		}
	})
}

func TestPreferenceHandler_Queries(t *testing.T) {
	prefs := &fakePreferences{prefs: map[string]*domain.UserPreferences{
		"u1": {UserID: "u1", Preferences: []domain.CategoryPreference{{Category: "101", Name: "smartphones", Score: 0.5}}},
	}}
	app := newApp(nil)
	NewPreferenceHandler(prefs, nil).RegisterUsers(app)

	status, env := do(t, app, "GET", "/users/u1/preferences", nil)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	var got domain.UserPreferences
	if err := json.Unmarshal(env.Data, &got); err != nil || len(got.Preferences) != 1 || got.Preferences[0].Score != 0.5 {
		t.Errorf("preferences = %+v (%v)", got, err)
	}

	if status, env := do(t, app, "GET", "/users/u2/preferences", nil); status != 404 || env.Error.Code != apperr.CodeNotFound {
		t.Errorf("missing user: status = %d", status)
	}

	for path, want := range map[string]int{
		"/users/u1/preferences/history":           defaultHistoryLimit,
		"/users/u1/preferences/history?limit=3":   3,
		"/users/u1/preferences/history?limit=500": maxHistoryLimit,
	} {
		prefs.limits = nil
		status, env := do(t, app, "GET", path, nil)
		if status != 200 || len(prefs.limits) != 1 || prefs.limits[0] != want {
			t.Errorf("%s: status %d limits %v, want %d", path, status, prefs.limits, want)
		}
		if env.Meta == nil || env.Meta.Total != 1 {
			t.Errorf("%s: meta = %+v", path, env.Meta)
		}
	}
}

// =============================================================================
// Taxonomy handler
// =============================================================================

func TestTaxonomyHandler(t *testing.T) {
	app := newApp(nil)
	h := NewTaxonomyHandler(fakeTaxonomy{})
	h.Register(app)
	h.RegisterAdmin(app, middleware.APIKey("secret"))

	status, env := do(t, app, "GET", "/taxonomy/categories", nil)
	if status != 200 || env.Meta == nil || env.Meta.Total != 2 {
		t.Errorf("categories: status %d meta %+v", status, env.Meta)
	}

	if status, _ := do(t, app, "GET", "/taxonomy/schemas", nil); status != 200 {
		t.Errorf("schemas: status %d", status)
	}

	status, env = do(t, app, "GET", "/taxonomy/search?query=iphone%20case", nil)
	var analysis in.QueryAnalysis
	if err := json.Unmarshal(env.Data, &analysis); status != 200 || err != nil || analysis.BestMatch != "101" || analysis.Query != "iphone case" {
		t.Errorf("search: status %d analysis %+v", status, analysis)
	}

	if status, _ := do(t, app, "GET", "/taxonomy/search", nil); status != 400 {
		t.Errorf("empty search: status %d", status)
	}

	if status, _ := do(t, app, "GET", "/admin/taxonomy/keyword-mappings", nil); status != 401 {
		t.Errorf("mappings without key: status %d", status)
	}

	req := httptest.NewRequest("GET", "/admin/taxonomy/keyword-mappings", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != 200 {
		t.Errorf("mappings with key: %v %v", resp.StatusCode, err)
	}
}

// =============================================================================
// Health handler
// =============================================================================

func TestHealthHandler(t *testing.T) {
	app := newApp(nil)
	NewHealthHandler(map[string]HealthCheck{
		"mongodb":  func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		"postgres": nil,
	}).WithPools(map[string]PoolStats{
		"redis": func() any { return map[string]int{"total_conns": 3} },
	}).Register(app)

	resp, _ := app.Test(httptest.NewRequest("GET", "/health", nil))
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	if resp.StatusCode != 200 || health["status"] != "degraded" {
		t.Errorf("health: %d %v", resp.StatusCode, health)
	}
	components, _ := health["components"].(map[string]any)
	if components["postgres"] != "not configured" || components["mongodb"] != "healthy" {
		t.Errorf("components = %v", components)
	}
	pools, _ := health["pools"].(map[string]any)
	redisPool, _ := pools["redis"].(map[string]any)
	if redisPool["total_conns"] != float64(3) {
		t.Errorf("pools = %v", health["pools"])
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/ready", nil))
	if resp.StatusCode != 503 {
		t.Errorf("ready status = %d", resp.StatusCode)
	}
}
