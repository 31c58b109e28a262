// Package reconcile maps asynchronous vendor delivery reports onto
// message status updates. Ingestion is idempotent and never regresses a
// message's status.
package reconcile

import (
	"context"
	"time"

	"warelay/internal/domain"
	"warelay/internal/observability"
	"warelay/internal/store"
)

type Store interface {
	GetMessageByVendorID(ctx context.Context, vendorMsgID string) (store.Message, bool, error)
	InsertDeliveryReport(ctx context.Context, in store.DeliveryReport) (bool, error)
	UpdateMessageStatus(ctx context.Context, id, status string, now time.Time) error
}

// Report is one vendor delivery event, already parsed off the wire.
type Report struct {
	VendorMsgID string
	EventType   string
	Cause       string
	ErrCode     string
	DestAddr    string
	Channel     string
	NoOfFrags   int
	EventTs     time.Time
}

type Outcome string

const (
	// OutcomeApplied: report stored, message status updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeStale: report stored, but it does not supersede the current
	// status (late out-of-order event).
	OutcomeStale Outcome = "stale"
	// OutcomeDuplicate: identical report already stored; no-op.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNotFound: no message with this vendor id yet; caller may
	// redeliver later.
	OutcomeNotFound Outcome = "not_found"
)

type Result struct {
	Outcome        Outcome
	Status         domain.MessageStatus
	UnknownMapping bool
}

type BatchResult struct {
	Processed  int `json:"processed"`
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
	NotFound   int `json:"notFound"`
	Errors     int `json:"errors"`
}

type Reconciler struct {
	Store Store
	Now   func() time.Time
}

// Ingest applies one delivery report. The message is looked up first so a
// report for a not-yet-synced message is not consumed by deduplication;
// the vendor's redelivery will find the message later.
func (r *Reconciler) Ingest(ctx context.Context, rep Report) (Result, error) {
	msg, found, err := r.Store.GetMessageByVendorID(ctx, rep.VendorMsgID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		observability.ReconcileResults.WithLabelValues(string(OutcomeNotFound)).Inc()
		return Result{Outcome: OutcomeNotFound}, nil
	}

	inserted, err := r.Store.InsertDeliveryReport(ctx, store.DeliveryReport{
		VendorMsgID: rep.VendorMsgID,
		EventType:   rep.EventType,
		Cause:       rep.Cause,
		ErrCode:     rep.ErrCode,
		DestAddr:    rep.DestAddr,
		Channel:     rep.Channel,
		NoOfFrags:   rep.NoOfFrags,
		EventTs:     rep.EventTs,
		ReceivedAt:  r.Now(),
	})
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		observability.ReconcileResults.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	status, known := MapStatus(rep.EventType, rep.Cause, rep.ErrCode)
	if !known {
		observability.UnknownMappings.WithLabelValues(rep.EventType, rep.ErrCode).Inc()
	}

	if !status.Supersedes(domain.MessageStatus(msg.Status)) {
		observability.ReconcileResults.WithLabelValues(string(OutcomeStale)).Inc()
		return Result{Outcome: OutcomeStale, Status: status, UnknownMapping: !known}, nil
	}

	if err := r.Store.UpdateMessageStatus(ctx, msg.ID, string(status), r.Now()); err != nil {
		return Result{}, err
	}
	observability.ReconcileResults.WithLabelValues(string(OutcomeApplied)).Inc()
	return Result{Outcome: OutcomeApplied, Status: status, UnknownMapping: !known}, nil
}

// IngestBatch processes each report independently; one bad element never
// aborts the rest of the batch.
func (r *Reconciler) IngestBatch(ctx context.Context, reps []Report) BatchResult {
	var out BatchResult
	for _, rep := range reps {
		out.Processed++
		res, err := r.Ingest(ctx, rep)
		if err != nil {
			out.Errors++
			continue
		}
		switch res.Outcome {
		case OutcomeApplied, OutcomeStale:
			out.Applied++
		case OutcomeDuplicate:
			out.Duplicates++
		case OutcomeNotFound:
			out.NotFound++
		}
	}
	return out
}
