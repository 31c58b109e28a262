package httpserver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"warelay/internal/domain"
	"warelay/internal/observability"
	sqsqueue "warelay/internal/queue/sqs"
	"warelay/internal/service"
)

// DeliveryJobs enqueues delivery reports for async reconciliation.
type DeliveryJobs interface {
	Enqueue(ctx context.Context, ev sqsqueue.DeliveryEvent) error
}

// Webhook terminates the vendor's callbacks. Inbound messages are
// processed synchronously so the sender sees a definitive status;
// delivery reports only get enqueued, the reconciler owns the rest.
type Webhook struct {
	Inbound  *service.Inbound
	Delivery DeliveryJobs
	Token    string
	Now      func() time.Time
}

func (h *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/webhooks/pinnacle/message", h.auth(h.handleInbound)).Methods(http.MethodPost)
	r.HandleFunc("/v1/webhooks/pinnacle/status", h.auth(h.handleDeliveryPost)).Methods(http.MethodPost)
	r.HandleFunc("/v1/webhooks/pinnacle/status", h.auth(h.handleDeliveryGet)).Methods(http.MethodGet)
}

func (h *Webhook) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Webhook-Token")
		if h.Token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			observability.WebhookEvents.WithLabelValues("auth", "rejected").Inc()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *Webhook) handleInbound(w http.ResponseWriter, r *http.Request) {
	var in domain.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		observability.WebhookEvents.WithLabelValues("inbound_message", "bad_json").Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	msg, err := h.Inbound.Handle(r.Context(), in)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("inbound_message", "error").Inc()
		slog.Error("inbound message failed", "err", err, "mobile", in.Mobile)
		writeError(w, err)
		return
	}

	observability.WebhookEvents.WithLabelValues("inbound_message", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"messageId": msg.ID})
}

func (h *Webhook) handleDeliveryPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	reports, err := parseDeliveryBody(body)
	if err != nil {
		observability.WebhookEvents.WithLabelValues("delivery_report", "bad_json").Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	h.enqueueReports(w, r, reports)
}

// handleDeliveryGet accepts the query-string form some gateway tenants
// are configured with: one report per request.
func (h *Webhook) handleDeliveryGet(w http.ResponseWriter, r *http.Request) {
	rep := reportFromQuery(r.URL.Query())
	if rep.MsgID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing externalId"})
		return
	}
	h.enqueueReports(w, r, []deliveryReport{rep})
}

func (h *Webhook) enqueueReports(w http.ResponseWriter, r *http.Request, reports []deliveryReport) {
	now := h.Now()
	accepted := 0
	for _, rep := range reports {
		if rep.MsgID == "" || rep.EventType == "" {
			observability.WebhookEvents.WithLabelValues("delivery_report", "dropped").Inc()
			continue
		}
		ev := rep.toEvent(now)
		if err := h.Delivery.Enqueue(r.Context(), ev); err != nil {
			slog.Error("enqueue delivery report failed", "err", err, "vendor_msg_id", rep.MsgID)
			observability.Enqueues.WithLabelValues("delivery-events", "error").Inc()
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "enqueue failed"})
			return
		}
		observability.Enqueues.WithLabelValues("delivery-events", "ok").Inc()
		accepted++
	}
	observability.WebhookEvents.WithLabelValues("delivery_report", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]int{"accepted": accepted})
}

// deliveryReport is the gateway's report shape. Numeric fields arrive as
// numbers or quoted strings depending on the tenant, so both are accepted.
// Newer tenants send externalId/errCode, older ones msgId/errorCode.
type deliveryReport struct {
	MsgID      string     `json:"externalId"`
	LegacyID   string     `json:"msgId"`
	EventType  string     `json:"eventType"`
	Cause      string     `json:"cause"`
	ErrCode    flexString `json:"errCode"`
	LegacyCode flexString `json:"errorCode"`
	DestAddr   string     `json:"destAddr"`
	Channel    string     `json:"channel"`
	NoOfFrags  flexInt    `json:"noOfFrags"`
	EventTs    flexInt    `json:"eventTs"`
}

func (rep *deliveryReport) normalize() {
	if rep.MsgID == "" {
		rep.MsgID = rep.LegacyID
	}
	if rep.ErrCode == "" {
		rep.ErrCode = rep.LegacyCode
	}
}

func (rep deliveryReport) toEvent(now time.Time) sqsqueue.DeliveryEvent {
	ts := now
	if rep.EventTs > 0 {
		ts = time.UnixMilli(int64(rep.EventTs)).UTC()
	}
	return sqsqueue.DeliveryEvent{
		VendorMsgID: rep.MsgID,
		EventType:   rep.EventType,
		Cause:       rep.Cause,
		ErrCode:     string(rep.ErrCode),
		DestAddr:    rep.DestAddr,
		Channel:     rep.Channel,
		NoOfFrags:   int(rep.NoOfFrags),
		EventTs:     ts,
		ReceivedAt:  now,
	}
}

// parseDeliveryBody accepts a single report object, a bare array, or the
// {"response": [...]} envelope.
func parseDeliveryBody(body []byte) ([]deliveryReport, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var reports []deliveryReport
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return nil, err
		}
		return normalized(reports), nil
	}

	var envelope struct {
		Response []deliveryReport `json:"response"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Response) > 0 {
		return normalized(envelope.Response), nil
	}

	var one deliveryReport
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return normalized([]deliveryReport{one}), nil
}

func normalized(reports []deliveryReport) []deliveryReport {
	for i := range reports {
		reports[i].normalize()
	}
	return reports
}

func reportFromQuery(q url.Values) deliveryReport {
	frags, _ := strconv.Atoi(q.Get("noOfFrags"))
	ts, _ := strconv.ParseInt(q.Get("eventTs"), 10, 64)
	rep := deliveryReport{
		MsgID:      q.Get("externalId"),
		LegacyID:   q.Get("msgId"),
		EventType:  q.Get("eventType"),
		Cause:      q.Get("cause"),
		ErrCode:    flexString(q.Get("errCode")),
		LegacyCode: flexString(q.Get("errorCode")),
		DestAddr:   q.Get("destAddr"),
		Channel:    q.Get("channel"),
		NoOfFrags:  flexInt(frags),
		EventTs:    flexInt(ts),
	}
	rep.normalize()
	return rep
}

// flexInt decodes a JSON number or a quoted number.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexString decodes a JSON string or a bare number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}
