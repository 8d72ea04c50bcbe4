package messaging

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"preference_server/core/port/out"
)

func TestEncodeValues(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	job := &out.ProcessJob{
		JobID:    "job-1",
		UserID:   "u1",
		DataType: "purchase",
		Entries:  json.RawMessage(`[{"items":[]}]`),
	}

	values, err := encodeValues(job, now)
	if err != nil {
		t.Fatalf("encodeValues: %v", err)
	}
	data, ok := values["data"].(string)
	if !ok {
		t.Fatalf("data = %#v", values["data"])
	}

	var decoded out.ProcessJob
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.JobID != "job-1" || decoded.UserID != "u1" || string(decoded.Entries) != `[{"items":[]}]` {
		t.Errorf("decoded = %+v", decoded)
	}
	if values["published_at"] != "2024-05-01T10:00:00Z" {
		t.Errorf("published_at = %v", values["published_at"])
	}
}

func TestMessageData(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    string
		wantErr string
	}{
		{"ok", map[string]any{"data": `{"a":1}`}, `{"a":1}`, ""},
		{"missing", map[string]any{"other": "x"}, "", "missing data"},
		{"not string", map[string]any{"data": 12}, "", "not a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := messageData(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || string(got) != tt.want {
				t.Errorf("got %q, %v", got, err)
			}
		})
	}
}

func TestDeadLetterValues(t *testing.T) {
	msg := redis.XMessage{ID: "7-1", Values: map[string]any{"data": "{}"}}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	v := deadLetterValues(StreamPreferenceProcess, msg, "max retries exceeded", "c1", "g1", now)

	want := map[string]any{
		"original_stream": StreamPreferenceProcess,
		"original_id":     "7-1",
		"reason":          "max retries exceeded",
		"failed_at":       "2024-05-01T00:00:00Z",
		"consumer":        "c1",
		"group":           "g1",
		"original_data":   "{}",
	}
	for k, w := range want {
		if v[k] != w {
			t.Errorf("%s = %v, want %v", k, v[k], w)
		}
	}
	if DeadLetterStream(StreamPreferenceProcess) != "dlq:stream:preference:process" {
		t.Errorf("dlq stream = %s", DeadLetterStream(StreamPreferenceProcess))
	}
}

func TestConsumerConfigDefaults(t *testing.T) {
	c := NewConsumer(nil, nil, &ConsumerConfig{Group: "g", Consumer: "c", Logger: zerolog.Nop()})
	if len(c.streams) != 1 || c.streams[0] != StreamPreferenceProcess {
		t.Errorf("streams = %v", c.streams)
	}
	if c.maxRetries != 3 || c.readCount != 10 || c.pendingIdleTime != 2*time.Minute {
		t.Errorf("defaults not applied: %+v", c)
	}
}
