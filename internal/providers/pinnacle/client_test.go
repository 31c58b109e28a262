package pinnacle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendTemplateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wa/template" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "k1" {
			t.Fatalf("expected apikey header, got %q", got)
		}
		var req templateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Mobile != "+919876543210" || req.Template == "" {
			t.Fatalf("bad request payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(SendResponse{MessageID: "wamid.1", Status: "submitted"})
	}))
	defer srv.Close()

	c := &Client{APIKey: "k1", WaNumber: "+911111111111", HTTP: srv.Client(), BaseURL: srv.URL}
	resp, status, _, err := c.SendTemplate(context.Background(), "+919876543210", "Hi {name}", "", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if status != 200 || resp.MessageID != "wamid.1" {
		t.Fatalf("unexpected response: %d %+v", status, resp)
	}
}

func TestSendTextVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(SendResponse{Error: "invalid mobile"})
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), BaseURL: srv.URL}
	_, status, _, err := c.SendText(context.Background(), "bad", "hello")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if err.Error() != "invalid mobile" {
		t.Fatalf("expected vendor error message, got %q", err.Error())
	}
}

func TestSendMissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SendResponse{Status: "submitted"})
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), BaseURL: srv.URL}
	_, _, _, err := c.SendText(context.Background(), "+919876543210", "hello")
	if err == nil {
		t.Fatal("expected error when vendor omits messageId")
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(nil, 429) || !ShouldRetry(nil, 503) || !ShouldRetry(context.DeadlineExceeded, 0) {
		t.Fatal("expected transient statuses to be retryable")
	}
	if ShouldRetry(nil, 400) || ShouldRetry(nil, 200) {
		t.Fatal("expected non-transient statuses to not be retryable")
	}
}
