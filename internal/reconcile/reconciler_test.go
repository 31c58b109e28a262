package reconcile

import (
	"context"
	"testing"
	"time"

	"warelay/internal/domain"
	"warelay/internal/store"
)

type reportKey struct {
	vendorID, eventType string
	eventTs             time.Time
}

type fakeStore struct {
	messages map[string]*store.Message // keyed by vendor msg id
	reports  map[reportKey]store.DeliveryReport
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: map[string]*store.Message{},
		reports:  map[reportKey]store.DeliveryReport{},
	}
}

func (f *fakeStore) GetMessageByVendorID(ctx context.Context, vendorMsgID string) (store.Message, bool, error) {
	m, ok := f.messages[vendorMsgID]
	if !ok {
		return store.Message{}, false, nil
	}
	return *m, true, nil
}

func (f *fakeStore) InsertDeliveryReport(ctx context.Context, in store.DeliveryReport) (bool, error) {
	k := reportKey{in.VendorMsgID, in.EventType, in.EventTs}
	if _, ok := f.reports[k]; ok {
		return false, nil
	}
	f.reports[k] = in
	return true, nil
}

func (f *fakeStore) UpdateMessageStatus(ctx context.Context, id, status string, now time.Time) error {
	for _, m := range f.messages {
		if m.ID == id {
			m.Status = status
		}
	}
	return nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(f *fakeStore) *Reconciler {
	return &Reconciler{Store: f, Now: func() time.Time { return now }}
}

func seedMessage(f *fakeStore, vendorID, status string) {
	f.messages[vendorID] = &store.Message{ID: "msg_" + vendorID, VendorMsgID: vendorID, Status: status}
}

func TestIngestApplies(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "sent")
	r := newReconciler(f)

	res, err := r.Ingest(context.Background(), Report{
		VendorMsgID: "wamid.1", EventType: "DELIVERED", EventTs: now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Outcome != OutcomeApplied || res.Status != domain.StatusDelivered {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.messages["wamid.1"].Status != "delivered" {
		t.Fatalf("expected message delivered, got %s", f.messages["wamid.1"].Status)
	}
}

func TestIngestDuplicateIsNoOp(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "sent")
	r := newReconciler(f)
	rep := Report{VendorMsgID: "wamid.1", EventType: "DELIVERED", EventTs: now.Add(-time.Minute)}

	if _, err := r.Ingest(context.Background(), rep); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	res, err := r.Ingest(context.Background(), rep)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Outcome)
	}
	if len(f.reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(f.reports))
	}
}

func TestIngestNotFound(t *testing.T) {
	r := newReconciler(newFakeStore())
	res, err := r.Ingest(context.Background(), Report{VendorMsgID: "missing", EventType: "DELIVERED", EventTs: now})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", res.Outcome)
	}
}

func TestIngestNeverRegressesStatus(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "read")
	r := newReconciler(f)

	res, err := r.Ingest(context.Background(), Report{
		VendorMsgID: "wamid.1", EventType: "DELIVERED", EventTs: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Outcome != OutcomeStale {
		t.Fatalf("expected stale, got %s", res.Outcome)
	}
	if f.messages["wamid.1"].Status != "read" {
		t.Fatalf("status regressed to %s", f.messages["wamid.1"].Status)
	}
}

func TestIngestFailedDominatesAndIsTerminal(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "read")
	r := newReconciler(f)
	ctx := context.Background()

	if _, err := r.Ingest(ctx, Report{VendorMsgID: "wamid.1", EventType: "FAILED", EventTs: now.Add(-2 * time.Minute)}); err != nil {
		t.Fatalf("ingest failed event: %v", err)
	}
	if f.messages["wamid.1"].Status != "failed" {
		t.Fatalf("expected failed, got %s", f.messages["wamid.1"].Status)
	}

	res, err := r.Ingest(ctx, Report{VendorMsgID: "wamid.1", EventType: "DELIVERED", EventTs: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("ingest after failed: %v", err)
	}
	if res.Outcome != OutcomeStale || f.messages["wamid.1"].Status != "failed" {
		t.Fatalf("failed state was not terminal: %+v, status=%s", res, f.messages["wamid.1"].Status)
	}
}

func TestIngestUnknownMappingDefaultsToSent(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "sent")
	r := newReconciler(f)

	res, err := r.Ingest(context.Background(), Report{
		VendorMsgID: "wamid.1", EventType: "SUBMITTED_TO_CARRIER", EventTs: now,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.UnknownMapping {
		t.Fatal("expected unknown mapping flag")
	}
	if res.Status != domain.StatusSent {
		t.Fatalf("expected sent, got %s", res.Status)
	}
}

func TestIngestBatchIsolation(t *testing.T) {
	f := newFakeStore()
	seedMessage(f, "wamid.1", "sent")
	seedMessage(f, "wamid.3", "sent")
	r := newReconciler(f)

	res := r.IngestBatch(context.Background(), []Report{
		{VendorMsgID: "wamid.1", EventType: "DELIVERED", EventTs: now},
		{VendorMsgID: "wamid.2", EventType: "DELIVERED", EventTs: now}, // unknown message
		{VendorMsgID: "wamid.3", EventType: "READ", EventTs: now},
	})
	if res.Processed != 3 {
		t.Fatalf("expected 3 processed, got %d", res.Processed)
	}
	if res.Applied != 2 || res.NotFound != 1 {
		t.Fatalf("unexpected batch result: %+v", res)
	}
	if f.messages["wamid.3"].Status != "read" {
		t.Fatal("element after not_found was not processed")
	}
}
