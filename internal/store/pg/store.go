package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"warelay/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// InsertContact returns false when another contact already holds the
// normalized phone. Uniqueness is enforced by the index, not by a
// check-then-create race.
func (s *Store) InsertContact(ctx context.Context, in store.ContactInsert) (bool, error) {
	cf, _ := json.Marshal(in.CustomFields)
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO contacts (id, phone, name, tags, custom_fields, blocked, owner, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,false,$6,$7,$7)
		ON CONFLICT (phone) DO NOTHING
	`, in.ID, in.Phone, in.Name, in.Tags, cf, nullIfEmpty(in.Owner), in.Now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) GetContactByPhone(ctx context.Context, phoneNum string) (store.Contact, bool, error) {
	return s.scanContact(s.DB.QueryRow(ctx, `
		SELECT id, phone, name, tags, custom_fields, blocked, COALESCE(owner,''), created_at, updated_at
		FROM contacts WHERE phone=$1
	`, phoneNum))
}

func (s *Store) GetContact(ctx context.Context, id string) (store.Contact, bool, error) {
	return s.scanContact(s.DB.QueryRow(ctx, `
		SELECT id, phone, name, tags, custom_fields, blocked, COALESCE(owner,''), created_at, updated_at
		FROM contacts WHERE id=$1
	`, id))
}

func (s *Store) SetContactBlocked(ctx context.Context, id string, blocked bool, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE contacts SET blocked=$2, updated_at=$3 WHERE id=$1
	`, id, blocked, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) scanContact(row pgx.Row) (store.Contact, bool, error) {
	var c store.Contact
	var cf []byte
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Tags, &cf, &c.Blocked, &c.Owner, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Contact{}, false, nil
		}
		return store.Contact{}, false, err
	}
	_ = json.Unmarshal(cf, &c.CustomFields)
	return c, true, nil
}

const conversationCols = `
	id, contact_id, status, last_message_at, last_inbound_message_at,
	unread_count, COALESCE(assignee,''), tags, created_at, updated_at`

func (s *Store) ActiveConversationByContact(ctx context.Context, contactID string) (store.Conversation, bool, error) {
	return s.scanConversation(s.DB.QueryRow(ctx, `
		SELECT `+conversationCols+`
		FROM conversations WHERE contact_id=$1 AND status IN ('open','pending')
		ORDER BY updated_at DESC LIMIT 1
	`, contactID))
}

func (s *Store) LatestClosedConversationByContact(ctx context.Context, contactID string) (store.Conversation, bool, error) {
	return s.scanConversation(s.DB.QueryRow(ctx, `
		SELECT `+conversationCols+`
		FROM conversations WHERE contact_id=$1 AND status='closed'
		ORDER BY updated_at DESC LIMIT 1
	`, contactID))
}

func (s *Store) GetConversation(ctx context.Context, id string) (store.Conversation, bool, error) {
	return s.scanConversation(s.DB.QueryRow(ctx, `
		SELECT `+conversationCols+`
		FROM conversations WHERE id=$1
	`, id))
}

func (s *Store) scanConversation(row pgx.Row) (store.Conversation, bool, error) {
	var c store.Conversation
	err := row.Scan(&c.ID, &c.ContactID, &c.Status, &c.LastMessageAt, &c.LastInboundMessageAt,
		&c.UnreadCount, &c.Assignee, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Conversation{}, false, nil
		}
		return store.Conversation{}, false, err
	}
	return c, true, nil
}

func (s *Store) InsertConversation(ctx context.Context, in store.ConversationInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO conversations (id, contact_id, status, unread_count, last_message_at, created_at, updated_at)
		VALUES ($1,$2,$3,0,$4,$4,$4)
	`, in.ID, in.ContactID, in.Status, in.Now)
	return err
}

func (s *Store) ReopenConversation(ctx context.Context, id string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET status='open', unread_count=0, last_message_at=$2, updated_at=$2
		WHERE id=$1
	`, id, now)
	return err
}

func (s *Store) SetConversationStatus(ctx context.Context, id, status string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations SET status=$2, updated_at=$3 WHERE id=$1
	`, id, status, now)
	return err
}

// RecordInbound bumps the unread counter and moves the inbound watermark
// forward. GREATEST keeps a late-arriving old webhook from rolling the
// 24-hour window back.
func (s *Store) RecordInbound(ctx context.Context, convID string, ts, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET unread_count = unread_count + 1,
		    last_inbound_message_at = GREATEST(COALESCE(last_inbound_message_at, 'epoch'::timestamptz), $2),
		    last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $2),
		    updated_at = $3
		WHERE id=$1
	`, convID, ts, now)
	return err
}

func (s *Store) MarkConversationRead(ctx context.Context, id string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations SET unread_count=0, updated_at=$2 WHERE id=$1
	`, id, now)
	return err
}

func (s *Store) SetLastInboundAt(ctx context.Context, id string, ts, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET last_inbound_message_at = GREATEST(COALESCE(last_inbound_message_at, 'epoch'::timestamptz), $2),
		    updated_at = $3
		WHERE id=$1
	`, id, ts, now)
	return err
}

func (s *Store) TouchConversation(ctx context.Context, id string, ts time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $2),
		    updated_at = $2
		WHERE id=$1
	`, id, ts)
	return err
}

func (s *Store) LatestInboundAt(ctx context.Context, convID string) (time.Time, bool, error) {
	var ts *time.Time
	err := s.DB.QueryRow(ctx, `
		SELECT MAX(ts) FROM messages WHERE conversation_id=$1 AND direction='inbound'
	`, convID).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}

func (s *Store) InsertMessage(ctx context.Context, in store.MessageInsert) error {
	vars, _ := json.Marshal(in.Vars)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, contact_id, vendor_msg_id, direction, type,
		                      body, media_url, template_id, vars_json, status, ts, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,false,$13)
	`, in.ID, in.ConversationID, in.ContactID, nullIfEmpty(in.VendorMsgID), in.Direction, in.Type,
		in.Body, nullIfEmpty(in.MediaURL), nullIfEmpty(in.TemplateID), vars, in.Status, in.Timestamp, in.Now)
	return err
}

func (s *Store) GetMessageByVendorID(ctx context.Context, vendorMsgID string) (store.Message, bool, error) {
	var m store.Message
	var vars []byte
	err := s.DB.QueryRow(ctx, `
		SELECT id, conversation_id, contact_id, COALESCE(vendor_msg_id,''), direction, type,
		       body, COALESCE(media_url,''), COALESCE(template_id,''), vars_json, status, ts, read
		FROM messages WHERE vendor_msg_id=$1
	`, vendorMsgID).Scan(&m.ID, &m.ConversationID, &m.ContactID, &m.VendorMsgID, &m.Direction,
		&m.Type, &m.Body, &m.MediaURL, &m.TemplateID, &vars, &m.Status, &m.Timestamp, &m.Read)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Message{}, false, nil
		}
		return store.Message{}, false, err
	}
	_ = json.Unmarshal(vars, &m.Vars)
	return m, true, nil
}

func (s *Store) UpdateMessageStatus(ctx context.Context, id, status string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE messages SET status=$2, updated_at=$3 WHERE id=$1
	`, id, status, now)
	return err
}

// InsertDeliveryReport returns false for a redelivered report; the unique
// index on (vendor_msg_id, event_type, event_ts) makes ingestion idempotent.
func (s *Store) InsertDeliveryReport(ctx context.Context, in store.DeliveryReport) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO delivery_reports (vendor_msg_id, event_type, cause, err_code, dest_addr, channel, no_of_frags, event_ts, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (vendor_msg_id, event_type, event_ts) DO NOTHING
	`, in.VendorMsgID, in.EventType, nullIfEmpty(in.Cause), nullIfEmpty(in.ErrCode),
		nullIfEmpty(in.DestAddr), nullIfEmpty(in.Channel), in.NoOfFrags, in.EventTs, in.ReceivedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (store.Template, bool, error) {
	var t store.Template
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, body, COALESCE(header,''), COALESCE(footer,'') FROM templates WHERE id=$1
	`, id).Scan(&t.ID, &t.Name, &t.Body, &t.Header, &t.Footer)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Template{}, false, nil
		}
		return store.Template{}, false, err
	}
	return t, true, nil
}

// CreateCampaign persists the campaign and every recipient row in one
// transaction; either the whole campaign exists or none of it does.
func (s *Store) CreateCampaign(ctx context.Context, in store.CampaignInsert, recipients []store.CampaignRecipient) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO campaigns (id, name, template_id, owner, status, sent_count, failed_count, total_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,0,0,$6,$7,$7)
	`, in.ID, in.Name, in.TemplateID, nullIfEmpty(in.Owner), in.Status, in.TotalCount, in.Now)
	if err != nil {
		return err
	}

	for _, r := range recipients {
		vars, _ := json.Marshal(r.Vars)
		_, err = tx.Exec(ctx, `
			INSERT INTO campaign_recipients (campaign_id, position, contact_id, phone, name, vars_json, outcome, reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, r.CampaignID, r.Position, nullIfEmpty(r.ContactID), r.Phone, r.Name, vars, r.Outcome, nullIfEmpty(r.Reason))
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error) {
	var c store.Campaign
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, template_id, COALESCE(owner,''), status, sent_count, failed_count, total_count, created_at, updated_at
		FROM campaigns WHERE id=$1
	`, id).Scan(&c.ID, &c.Name, &c.TemplateID, &c.Owner, &c.Status, &c.SentCount, &c.FailedCount,
		&c.TotalCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Campaign{}, false, nil
		}
		return store.Campaign{}, false, err
	}
	return c, true, nil
}

// ClaimCampaign moves pending -> processing. The conditional update is the
// exclusivity guard: two workers racing on the same campaign means exactly
// one gets RowsAffected()==1.
func (s *Store) ClaimCampaign(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status='processing', updated_at=$2 WHERE id=$1 AND status='pending'
	`, id, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) FinishCampaign(ctx context.Context, id, status string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, updated_at=$3 WHERE id=$1
	`, id, status, now)
	return err
}

// CancelCampaign refuses to cancel a campaign that is mid-flight.
func (s *Store) CancelCampaign(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status='failed', updated_at=$2 WHERE id=$1 AND status <> 'processing'
	`, id, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) ListReadyRecipients(ctx context.Context, campaignID string) ([]store.CampaignRecipient, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT campaign_id, position, COALESCE(contact_id,''), phone, name, vars_json, outcome, COALESCE(reason,'')
		FROM campaign_recipients WHERE campaign_id=$1 AND outcome='ready'
		ORDER BY position
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.CampaignRecipient
	for rows.Next() {
		var r store.CampaignRecipient
		var vars []byte
		if err := rows.Scan(&r.CampaignID, &r.Position, &r.ContactID, &r.Phone, &r.Name, &vars, &r.Outcome, &r.Reason); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(vars, &r.Vars)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetRecipientOutcome(ctx context.Context, campaignID string, position int, outcome, reason string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_recipients SET outcome=$3, reason=$4 WHERE campaign_id=$1 AND position=$2
	`, campaignID, position, outcome, nullIfEmpty(reason))
	return err
}

func (s *Store) BumpCampaignCounters(ctx context.Context, id string, sentDelta, failedDelta int, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns
		SET sent_count = sent_count + $2, failed_count = failed_count + $3, updated_at = $4
		WHERE id=$1
	`, id, sentDelta, failedDelta, now)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
