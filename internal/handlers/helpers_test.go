package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

// decodeBody checks the response is JSON and unmarshals it into v.
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected content type application/json, got %q", ct)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d", status, rr.Code)
	}
	var response ErrorResponse
	decodeBody(t, rr, &response)
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}
