// Package campaign fans a single template out to many recipients with
// throttling, per-recipient failure isolation, and progress reporting.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"warelay/internal/conversation"
	"warelay/internal/domain"
	"warelay/internal/observability"
	"warelay/internal/phone"
	"warelay/internal/store"
	"warelay/internal/util"
)

type Store interface {
	GetTemplate(ctx context.Context, id string) (store.Template, bool, error)
	CreateCampaign(ctx context.Context, in store.CampaignInsert, recipients []store.CampaignRecipient) error
	GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error)
	ClaimCampaign(ctx context.Context, id string, now time.Time) (bool, error)
	FinishCampaign(ctx context.Context, id, status string, now time.Time) error
	CancelCampaign(ctx context.Context, id string, now time.Time) (bool, error)
	ListReadyRecipients(ctx context.Context, campaignID string) ([]store.CampaignRecipient, error)
	SetRecipientOutcome(ctx context.Context, campaignID string, position int, outcome, reason string) error
	BumpCampaignCounters(ctx context.Context, id string, sentDelta, failedDelta int, now time.Time) error
	InsertMessage(ctx context.Context, in store.MessageInsert) error
}

type Contacts interface {
	FindOrCreateByPhone(ctx context.Context, raw, name string, tags []string) (store.Contact, bool, error)
}

type Conversations interface {
	FindOrCreate(ctx context.Context, contactID string) (store.Conversation, conversation.Resolution, error)
}

// Sender delivers one template message and returns the vendor message id.
// Rate limiting across recipients belongs to the dispatcher; retry and
// breaker policy belong to the sender implementation.
type Sender interface {
	SendTemplate(ctx context.Context, mobile, body, header, footer string) (string, error)
}

type Dispatcher struct {
	Store         Store
	Contacts      Contacts
	Conversations Conversations
	Sender        Sender
	// Limiter paces sends to respect vendor rate limits. One token per
	// recipient.
	Limiter *rate.Limiter
	IDGen   func() string
	MsgID   func() string
	Now     func() time.Time
}

// RecipientRow is one row of the campaign creation request. Vars is an
// open map; it is only matched against the template at send time.
type RecipientRow struct {
	Phone string            `json:"phone"`
	Name  string            `json:"name"`
	Vars  map[string]string `json:"vars,omitempty"`
}

type RowOutcome struct {
	Row       RecipientRow            `json:"row"`
	Outcome   domain.RecipientOutcome `json:"outcome"`
	Reason    string                  `json:"reason,omitempty"`
	ContactID string                  `json:"contactId,omitempty"`
}

type CreateResult struct {
	Campaign      store.Campaign `json:"campaign"`
	Rows          []RowOutcome   `json:"rows"`
	ValidContacts int            `json:"validContacts"`
}

// Create validates the template, resolves every recipient row to a
// contact (creating on first sight), deduplicates by normalized phone
// within the request, and persists the campaign in pending state. With
// zero resolvable rows nothing is persisted.
func (d *Dispatcher) Create(ctx context.Context, name, templateID, owner string, rows []RecipientRow) (CreateResult, error) {
	if name == "" || templateID == "" || len(rows) == 0 {
		return CreateResult{}, domain.ErrMissingFields
	}
	if _, found, err := d.Store.GetTemplate(ctx, templateID); err != nil {
		return CreateResult{}, err
	} else if !found {
		return CreateResult{}, fmt.Errorf("template %s: %w", templateID, domain.ErrNotFound)
	}

	outcomes := make([]RowOutcome, 0, len(rows))
	seen := map[string]bool{}
	valid := 0

	for _, row := range rows {
		o := RowOutcome{Row: row}
		switch {
		case row.Phone == "" || row.Name == "":
			o.Outcome = domain.RecipientError
			o.Reason = "missing phone or name"
		default:
			norm := phone.Normalize(row.Phone)
			if !phone.IsValid(norm) {
				o.Outcome = domain.RecipientError
				o.Reason = "invalid phone"
			} else if seen[norm] {
				// first occurrence of a phone wins
				o.Outcome = domain.RecipientSkipped
				o.Reason = "duplicate phone in request"
			} else {
				seen[norm] = true
				c, _, err := d.Contacts.FindOrCreateByPhone(ctx, norm, row.Name, []string{"campaign"})
				if err != nil {
					o.Outcome = domain.RecipientError
					o.Reason = err.Error()
				} else {
					o.Outcome = domain.RecipientReady
					o.ContactID = c.ID
					o.Row.Phone = norm
					valid++
				}
			}
		}
		outcomes = append(outcomes, o)
	}

	if valid == 0 {
		return CreateResult{Rows: outcomes}, domain.ErrNoRecipients
	}

	now := d.Now()
	camp := store.CampaignInsert{
		ID:         d.IDGen(),
		Name:       name,
		TemplateID: templateID,
		Owner:      owner,
		Status:     string(domain.CampaignPending),
		TotalCount: valid,
		Now:        now,
	}
	recipients := make([]store.CampaignRecipient, 0, len(outcomes))
	for i, o := range outcomes {
		recipients = append(recipients, store.CampaignRecipient{
			CampaignID: camp.ID,
			Position:   i,
			ContactID:  o.ContactID,
			Phone:      o.Row.Phone,
			Name:       o.Row.Name,
			Vars:       o.Row.Vars,
			Outcome:    string(o.Outcome),
			Reason:     o.Reason,
		})
	}
	if err := d.Store.CreateCampaign(ctx, camp, recipients); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		Campaign: store.Campaign{
			ID: camp.ID, Name: name, TemplateID: templateID, Owner: owner,
			Status: camp.Status, TotalCount: valid, CreatedAt: now, UpdatedAt: now,
		},
		Rows:          outcomes,
		ValidContacts: valid,
	}, nil
}

// Process runs one campaign to completion. The pending -> processing
// claim makes the pass exclusive; recipients go out in input order; a
// failed recipient never aborts the loop.
func (d *Dispatcher) Process(ctx context.Context, campaignID string, onProgress func(int)) error {
	now := d.Now()
	claimed, err := d.Store.ClaimCampaign(ctx, campaignID, now)
	if err != nil {
		return err
	}
	if !claimed {
		if _, found, err := d.Store.GetCampaign(ctx, campaignID); err != nil {
			return err
		} else if !found {
			return domain.ErrNotFound
		}
		return domain.ErrCampaignState
	}

	camp, _, err := d.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	tpl, found, err := d.Store.GetTemplate(ctx, camp.TemplateID)
	if err != nil {
		return err
	}
	if !found {
		_ = d.Store.FinishCampaign(ctx, campaignID, string(domain.CampaignFailed), d.Now())
		return fmt.Errorf("template %s: %w", camp.TemplateID, domain.ErrNotFound)
	}

	recipients, err := d.Store.ListReadyRecipients(ctx, campaignID)
	if err != nil {
		return err
	}

	total := len(recipients)
	sent, failed := 0, 0
	for i, r := range recipients {
		if ctx.Err() != nil {
			break
		}
		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		body := util.RenderTemplate(tpl.Body, r.Vars)
		vendorID, sendErr := d.Sender.SendTemplate(ctx, r.Phone, body, tpl.Header, tpl.Footer)
		if sendErr != nil {
			failed++
			observability.CampaignRecipients.WithLabelValues(string(domain.RecipientFailed)).Inc()
			slog.Error("campaign recipient send failed",
				"campaign_id", campaignID, "position", r.Position, "to", r.Phone, "err", sendErr)
			d.recordOutcome(ctx, campaignID, r.Position, domain.RecipientFailed, sendErr.Error(), 0, 1)
		} else {
			sent++
			observability.CampaignRecipients.WithLabelValues(string(domain.RecipientSent)).Inc()
			d.recordOutcome(ctx, campaignID, r.Position, domain.RecipientSent, "", 1, 0)
			d.persistOutbound(ctx, r, tpl, body, vendorID)
		}

		if onProgress != nil {
			onProgress((i + 1) * 100 / total)
		}
	}

	status := domain.CampaignCompleted
	switch {
	case failed == 0 && sent == total:
		status = domain.CampaignCompleted
	case sent == 0:
		status = domain.CampaignFailed
	default:
		status = domain.CampaignPartiallyCompleted
	}
	return d.Store.FinishCampaign(ctx, campaignID, string(status), d.Now())
}

// recordOutcome persists one recipient's outcome and bumps the aggregate
// counters. Best effort like persistOutbound, but a write failure here
// skews the stored counters, so it is always logged.
func (d *Dispatcher) recordOutcome(ctx context.Context, campaignID string, position int, outcome domain.RecipientOutcome, reason string, sentDelta, failedDelta int) {
	if err := d.Store.SetRecipientOutcome(ctx, campaignID, position, string(outcome), reason); err != nil {
		slog.Error("campaign recipient outcome write failed",
			"campaign_id", campaignID, "position", position, "outcome", outcome, "err", err)
	}
	if err := d.Store.BumpCampaignCounters(ctx, campaignID, sentDelta, failedDelta, d.Now()); err != nil {
		slog.Error("campaign counter update failed",
			"campaign_id", campaignID, "position", position, "err", err)
	}
}

// persistOutbound records the sent template message in the recipient's
// conversation so later delivery reports have something to reconcile
// against. Best effort: a bookkeeping failure does not undo the send.
func (d *Dispatcher) persistOutbound(ctx context.Context, r store.CampaignRecipient, tpl store.Template, body, vendorID string) {
	if r.ContactID == "" {
		return
	}
	conv, _, err := d.Conversations.FindOrCreate(ctx, r.ContactID)
	if err != nil {
		slog.Error("campaign conversation lookup failed", "campaign_id", r.CampaignID, "contact_id", r.ContactID, "err", err)
		return
	}
	now := d.Now()
	if err := d.Store.InsertMessage(ctx, store.MessageInsert{
		ID:             d.MsgID(),
		ConversationID: conv.ID,
		ContactID:      r.ContactID,
		VendorMsgID:    vendorID,
		Direction:      string(domain.DirectionOutbound),
		Type:           string(domain.TypeTemplate),
		Body:           body,
		TemplateID:     tpl.ID,
		Vars:           r.Vars,
		Status:         string(domain.StatusSent),
		Timestamp:      now,
		Now:            now,
	}); err != nil {
		slog.Error("campaign message insert failed", "campaign_id", r.CampaignID, "contact_id", r.ContactID, "err", err)
	}
}

// Cancel refuses to touch a campaign that is mid-flight.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	if _, found, err := d.Store.GetCampaign(ctx, id); err != nil {
		return err
	} else if !found {
		return domain.ErrNotFound
	}
	ok, err := d.Store.CancelCampaign(ctx, id, d.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCampaignState
	}
	return nil
}

// Status is computed from the stored counters, not re-derived from
// recipient rows.
func (d *Dispatcher) Status(ctx context.Context, id string) (domain.CampaignProgress, error) {
	camp, found, err := d.Store.GetCampaign(ctx, id)
	if err != nil {
		return domain.CampaignProgress{}, err
	}
	if !found {
		return domain.CampaignProgress{}, domain.ErrNotFound
	}
	progress := 0
	if camp.TotalCount > 0 {
		progress = (camp.SentCount + camp.FailedCount) * 100 / camp.TotalCount
	}
	return domain.CampaignProgress{
		Status:      domain.CampaignStatus(camp.Status),
		SentCount:   camp.SentCount,
		FailedCount: camp.FailedCount,
		TotalCount:  camp.TotalCount,
		Progress:    progress,
	}, nil
}
