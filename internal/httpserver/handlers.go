package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"warelay/internal/campaign"
	"warelay/internal/contact"
	"warelay/internal/conversation"
	"warelay/internal/domain"
	"warelay/internal/observability"
	"warelay/internal/service"
)

// Jobs enqueues campaign processing work for the worker fleet.
type Jobs interface {
	EnqueueCampaign(ctx context.Context, campaignID string) error
}

type API struct {
	Messenger     *service.Messenger
	Contacts      *contact.Directory
	Conversations *conversation.Service
	Campaigns     *campaign.Dispatcher
	Jobs          Jobs
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/messages", a.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/contacts", a.handleCreateContact).Methods(http.MethodPost)
	r.HandleFunc("/v1/contacts", a.handleGetContactByPhone).Methods(http.MethodGet).Queries("phone", "{phone}")
	r.HandleFunc("/v1/contacts/{id}", a.handleGetContact).Methods(http.MethodGet)
	r.HandleFunc("/v1/contacts/{id}/block", a.handleBlockContact).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/window", a.handleWindow).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations/{id}/read", a.handleMarkRead).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/status", a.handleSetStatus).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns/{id}/cancel", a.handleCancelCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns/{id}/status", a.handleCampaignStatus).Methods(http.MethodGet)
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req service.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	msg, err := a.Messenger.Send(r.Context(), req)
	if err != nil {
		// A vendor failure still produced a persisted message; surface
		// both so the caller can show the failed bubble.
		if msg.ID != "" {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "message": msg})
			return
		}
		slog.Error("send message failed", "err", err, "phone", req.Phone, "type", req.Type)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone        string            `json:"phone"`
		Name         string            `json:"name"`
		Tags         []string          `json:"tags,omitempty"`
		CustomFields map[string]string `json:"customFields,omitempty"`
		Owner        string            `json:"owner,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	c, err := a.Contacts.Create(r.Context(), contact.CreateParams{
		Phone: req.Phone, Name: req.Name, Tags: req.Tags,
		CustomFields: req.CustomFields, Owner: req.Owner,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleGetContactByPhone(w http.ResponseWriter, r *http.Request) {
	c, err := a.Contacts.GetByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := a.Contacts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleBlockContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	if err := a.Contacts.SetBlocked(r.Context(), mux.Vars(r)["id"], req.Blocked); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWindow(w http.ResponseWriter, r *http.Request) {
	ws, err := a.Conversations.Window(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := a.Conversations.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	if err := a.Conversations.SetStatus(r.Context(), mux.Vars(r)["id"], domain.ConversationStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string                  `json:"name"`
		TemplateID string                  `json:"templateId"`
		Owner      string                  `json:"owner,omitempty"`
		Recipients []campaign.RecipientRow `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	res, err := a.Campaigns.Create(r.Context(), req.Name, req.TemplateID, req.Owner, req.Recipients)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := a.Jobs.EnqueueCampaign(r.Context(), res.Campaign.ID); err != nil {
		slog.Error("enqueue campaign failed", "err", err, "campaign_id", res.Campaign.ID)
		observability.Enqueues.WithLabelValues("campaign-jobs", "error").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "campaign created but not scheduled",
			"campaign": res.Campaign,
		})
		return
	}
	observability.Enqueues.WithLabelValues("campaign-jobs", "ok").Inc()

	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	if err := a.Campaigns.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	p, err := a.Campaigns.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
