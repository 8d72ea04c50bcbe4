package persistence

import (
	"testing"
	"time"

	"preference_server/core/domain"
	"preference_server/pkg/apperr"
)

func TestNewSnapshotRow_FillsDefaults(t *testing.T) {
	row, err := newSnapshotRow(&domain.PreferenceSnapshot{
		UserID:   "u1",
		DataType: domain.DataTypePurchase,
	})
	if err != nil {
		t.Fatalf("newSnapshotRow: %v", err)
	}
	if row.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected generated id")
	}
	if !row.CreatedAt.Valid || row.CreatedAt.Time.IsZero() {
		t.Error("expected created_at to be set")
	}
	if string(row.Preferences) != "[]" {
		t.Errorf("preferences = %s, want []", row.Preferences)
	}
	if row.TopCategories == nil || len(row.TopCategories) != 0 {
		t.Errorf("top categories = %v, want empty non-nil", row.TopCategories)
	}
}

func TestNewSnapshotRow_InvalidID(t *testing.T) {
	_, err := newSnapshotRow(&domain.PreferenceSnapshot{ID: "not-a-uuid", UserID: "u1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.AsAppError(err).Code != apperr.CodeBadRequest {
		t.Errorf("code = %s", apperr.AsAppError(err).Code)
	}
}

func TestSnapshotRow_ToEntity(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &domain.PreferenceSnapshot{
		ID:            "6f1c1a34-0a7e-4d7e-9a43-0c2a0d1c9f11",
		UserID:        "u1",
		DataType:      domain.DataTypeSearch,
		EntryCount:    3,
		TopCategories: []string{"101", "200"},
		Preferences: []domain.CategoryPreference{
			{Category: "101", Name: "smartphones", Score: 0.5, Attributes: map[string]map[string]float64{"brand": {"apple": 0.2}}},
		},
		CreatedAt: created,
	}

	row, err := newSnapshotRow(in)
	if err != nil {
		t.Fatalf("newSnapshotRow: %v", err)
	}
	got := row.toEntity()

	if got.ID != in.ID || got.UserID != "u1" || got.DataType != domain.DataTypeSearch || got.EntryCount != 3 {
		t.Errorf("unexpected entity: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
	if len(got.TopCategories) != 2 || got.TopCategories[0] != "101" {
		t.Errorf("top categories = %v", got.TopCategories)
	}
	if len(got.Preferences) != 1 || got.Preferences[0].Attributes["brand"]["apple"] != 0.2 {
		t.Errorf("preferences = %+v", got.Preferences)
	}
}

func TestSnapshotRow_ToEntity_BadJSON(t *testing.T) {
	row := &snapshotRow{UserID: "u1", Preferences: []byte("{oops")}
	if got := row.toEntity(); got.Preferences != nil {
		t.Errorf("expected nil preferences, got %+v", got.Preferences)
	}
}
