package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/handlers"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			l := NewRequestLogger(logging.New().SetOutput(&buf))
			handler := l.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/invites/sms", nil))

			entry := logLine(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("expected level %s, got %v", tt.level, entry["level"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("expected status %d, got %v", tt.status, entry["status"])
			}
			if entry["size"] != float64(4) {
				t.Errorf("expected size 4, got %v", entry["size"])
			}
			if entry["path"] != "/api/invites/sms" {
				t.Errorf("unexpected path %v", entry["path"])
			}
		})
	}
}

func TestRequestLogger_RecordsUser(t *testing.T) {
	var buf bytes.Buffer
	l := NewRequestLogger(logging.New().SetOutput(&buf))
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req = req.WithContext(handlers.SetUserInContext(req.Context(), &models.User{ID: id}))

	l.Apply(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	if got := logLine(t, &buf)["user_id"]; got != id.String() {
		t.Fatalf("expected user_id %s, got %v", id, got)
	}
}

func TestResponseRecorder_FirstStatusWins(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rec.Write([]byte("x"))
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.statusCode != http.StatusOK {
		t.Fatalf("expected implicit 200 to stick, got %d", rec.statusCode)
	}
}
