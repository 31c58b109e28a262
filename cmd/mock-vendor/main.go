package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
)

type mockConfig struct {
	Port   string `envconfig:"PORT" default:"8080"`
	APIKey string `envconfig:"MOCK_API_KEY" default:"mock_key"`

	// fixed | round_robin | random
	OutcomeMode string `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	OutcomesRaw string `envconfig:"MOCK_OUTCOMES" default:"delivered"`
	DelayMs     int    `envconfig:"MOCK_DELAY_MS" default:"0"`

	// Delivery report callbacks
	WebhookURL     string `envconfig:"MOCK_WEBHOOK_URL" default:""`
	WebhookToken   string `envconfig:"MOCK_WEBHOOK_TOKEN" default:""`
	WebhookDelayMs int    `envconfig:"MOCK_WEBHOOK_DELAY_MS" default:"300"`

	Outcomes []string
}

type sendRequest struct {
	WaNumber string `json:"waNumber"`
	Mobile   string `json:"mobile"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Template string `json:"template,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type deliveryReport struct {
	MsgID     string `json:"externalId"`
	EventType string `json:"eventType"`
	Cause     string `json:"cause,omitempty"`
	ErrCode   string `json:"errCode,omitempty"`
	DestAddr  string `json:"destAddr,omitempty"`
	Channel   string `json:"channel"`
	EventTs   int64  `json:"eventTs"`
}

type server struct {
	cfg    mockConfig
	idx    uint64
	rng    *rand.Rand
	rngMu  sync.Mutex
	client *http.Client
}

func main() {
	var cfg mockConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock vendor config load failed", "err", err)
		os.Exit(1)
	}
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	s := &server{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		client: &http.Client{Timeout: 5 * time.Second},
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/wa/text", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/wa/template", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/wa/media", s.handleSend).Methods(http.MethodPost)

	slog.Info("mock vendor listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("mock vendor server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != s.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, sendResponse{Status: "error", Error: "invalid api key"})
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "error", Error: "invalid json"})
		return
	}
	if req.Mobile == "" || req.WaNumber == "" {
		writeJSON(w, http.StatusBadRequest, sendResponse{Status: "error", Error: "mobile and waNumber required"})
		return
	}

	if s.cfg.DelayMs > 0 {
		time.Sleep(time.Duration(s.cfg.DelayMs) * time.Millisecond)
	}

	outcome := s.nextOutcome()
	switch outcome {
	case "rate_limit":
		writeJSON(w, http.StatusTooManyRequests, sendResponse{Status: "error", Error: "rate limited"})
		return
	case "server_error":
		writeJSON(w, http.StatusInternalServerError, sendResponse{Status: "error", Error: "internal error"})
		return
	}

	msgID := fmt.Sprintf("mock-%06d", atomic.AddUint64(&s.idx, 1))
	writeJSON(w, http.StatusOK, sendResponse{MessageID: msgID, Status: "submitted"})

	s.scheduleReports(msgID, req.Mobile, outcome)
}

// scheduleReports posts the delivery report sequence the way the real
// gateway does: SUBMITTED, then the terminal event, then READ when the
// message was delivered.
func (s *server) scheduleReports(msgID, mobile, outcome string) {
	if s.cfg.WebhookURL == "" {
		return
	}
	go func() {
		delay := time.Duration(s.cfg.WebhookDelayMs) * time.Millisecond

		post := func(eventType, cause, errCode string) {
			rep := deliveryReport{
				MsgID:     msgID,
				EventType: eventType,
				Cause:     cause,
				ErrCode:   errCode,
				DestAddr:  mobile,
				Channel:   "WABA",
				EventTs:   time.Now().UnixMilli(),
			}
			body, _ := json.Marshal([]deliveryReport{rep})
			req, err := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Webhook-Token", s.cfg.WebhookToken)
			resp, err := s.client.Do(req)
			if err != nil {
				slog.Error("mock webhook post failed", "url", s.cfg.WebhookURL, "err", err)
				return
			}
			resp.Body.Close()
		}

		time.Sleep(delay)
		post("SUBMITTED", "", "")

		time.Sleep(delay)
		switch outcome {
		case "delivered":
			post("DELIVERED", "", "0")
			time.Sleep(delay)
			post("READ", "", "0")
		case "failed":
			post("FAILED", "BLOCKED", "13")
		case "expired":
			post("UNDELIV", "EXPIRED", "470")
		}
	}()
}

func (s *server) nextOutcome() string {
	switch s.cfg.OutcomeMode {
	case "round_robin":
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	case "random":
		s.rngMu.Lock()
		i := s.rng.Intn(len(s.cfg.Outcomes))
		s.rngMu.Unlock()
		return s.cfg.Outcomes[i]
	default:
		return s.cfg.Outcomes[0]
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"delivered"}
	}
	return out
}
