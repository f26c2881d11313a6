package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bancora/internal/domain/audit"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	InsertFunc          func(ctx context.Context, event Event) (*Event, bool, error)
	MarkProcessedFunc   func(ctx context.Context, id string, processedAt time.Time) error
	ListUnprocessedFunc func(ctx context.Context, limit int) ([]*Event, error)
}

func (m *MockRepository) Insert(ctx context.Context, event Event) (*Event, bool, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, event)
	}
	event.ID = "evt-1"
	return &event, true, nil
}

func (m *MockRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, id, processedAt)
	}
	return nil
}

func (m *MockRepository) ListUnprocessed(ctx context.Context, limit int) ([]*Event, error) {
	if m.ListUnprocessedFunc != nil {
		return m.ListUnprocessedFunc(ctx, limit)
	}
	return nil, nil
}

// MockItems records status transitions
type MockItems struct {
	MarkErrorFunc  func(ctx context.Context, externalItemID, errorCode string) error
	MarkActiveFunc func(ctx context.Context, externalItemID string) error

	ErrorCalls  []string
	ActiveCalls []string
}

func (m *MockItems) MarkError(ctx context.Context, externalItemID, errorCode string) error {
	m.ErrorCalls = append(m.ErrorCalls, externalItemID+":"+errorCode)
	if m.MarkErrorFunc != nil {
		return m.MarkErrorFunc(ctx, externalItemID, errorCode)
	}
	return nil
}

func (m *MockItems) MarkActive(ctx context.Context, externalItemID string) error {
	m.ActiveCalls = append(m.ActiveCalls, externalItemID)
	if m.MarkActiveFunc != nil {
		return m.MarkActiveFunc(ctx, externalItemID)
	}
	return nil
}

// MockRecorder captures audit entries
type MockRecorder struct {
	Entries []audit.Entry
}

func (m *MockRecorder) Record(ctx context.Context, entry audit.Entry) error {
	m.Entries = append(m.Entries, entry)
	return nil
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists Before Processing", func(t *testing.T) {
		var inserted *Event
		repo := &MockRepository{
			InsertFunc: func(ctx context.Context, event Event) (*Event, bool, error) {
				event.ID = "evt-1"
				inserted = &event
				return &event, true, nil
			},
		}
		items := &MockItems{}
		p := NewProcessor(repo, items, &MockRecorder{})

		body := []byte(`{"webhook_type":"ITEM","webhook_code":"ITEM_LOGIN_REQUIRED","item_id":"item-1","error":{"error_code":"ITEM_LOGIN_REQUIRED"}}`)
		event, fresh, err := p.Ingest(ctx, body)
		if err != nil {
			t.Fatalf("Ingest() unexpected error: %v", err)
		}
		if !fresh {
			t.Error("Ingest() expected fresh insert")
		}
		if inserted == nil {
			t.Fatal("Ingest() must persist the event")
		}
		if string(inserted.Payload) != string(body) {
			t.Error("Ingest() must store the payload verbatim")
		}
		if event.ItemID == nil || *event.ItemID != "item-1" {
			t.Errorf("Ingest() itemID = %v, want item-1", event.ItemID)
		}
		if event.ErrorCode == nil || *event.ErrorCode != "ITEM_LOGIN_REQUIRED" {
			t.Errorf("Ingest() errorCode = %v, want ITEM_LOGIN_REQUIRED", event.ErrorCode)
		}
		if len(items.ErrorCalls)+len(items.ActiveCalls) != 0 {
			t.Error("Ingest() must not apply effects, only persist")
		}
	})

	t.Run("Duplicate Delivery Not Reinserted", func(t *testing.T) {
		existing := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_OK", Processed: true}
		repo := &MockRepository{
			InsertFunc: func(ctx context.Context, event Event) (*Event, bool, error) {
				return existing, false, nil
			},
		}
		p := NewProcessor(repo, &MockItems{}, &MockRecorder{})

		event, fresh, err := p.Ingest(ctx, []byte(`{"webhook_type":"ITEM","webhook_code":"ITEM_OK","webhook_id":"whk-1"}`))
		if err != nil {
			t.Fatalf("Ingest() unexpected error: %v", err)
		}
		if fresh {
			t.Error("Ingest() duplicate delivery must not be treated as fresh")
		}
		if event.ID != "evt-1" {
			t.Errorf("Ingest() expected existing event, got %s", event.ID)
		}
	})

	t.Run("Malformed Payload Rejected", func(t *testing.T) {
		p := NewProcessor(&MockRepository{}, &MockItems{}, &MockRecorder{})

		if _, _, err := p.Ingest(ctx, []byte(`not json`)); err == nil {
			t.Error("Ingest() expected error for malformed payload")
		}
		if _, _, err := p.Ingest(ctx, []byte(`{"item_id":"item-1"}`)); err == nil {
			t.Error("Ingest() expected error for missing webhook_type")
		}
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	itemID := "item-1"
	errCode := "ITEM_LOGIN_REQUIRED"

	t.Run("Login Required Marks Error", func(t *testing.T) {
		items := &MockItems{}
		recorder := &MockRecorder{}
		p := NewProcessor(&MockRepository{}, items, recorder)

		event := &Event{
			ID:          "evt-1",
			WebhookType: "ITEM",
			WebhookCode: "ITEM_LOGIN_REQUIRED",
			ItemID:      &itemID,
			ErrorCode:   &errCode,
		}
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error: %v", err)
		}
		if len(items.ErrorCalls) != 1 || items.ErrorCalls[0] != "item-1:ITEM_LOGIN_REQUIRED" {
			t.Errorf("Process() error calls = %v", items.ErrorCalls)
		}
		if len(recorder.Entries) != 1 || recorder.Entries[0].EventType != audit.EventItemError {
			t.Errorf("Process() expected item_error audit entry, got %v", recorder.Entries)
		}
	})

	t.Run("Item OK Marks Active", func(t *testing.T) {
		items := &MockItems{}
		p := NewProcessor(&MockRepository{}, items, &MockRecorder{})

		event := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_OK", ItemID: &itemID}
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error: %v", err)
		}
		if len(items.ActiveCalls) != 1 || items.ActiveCalls[0] != "item-1" {
			t.Errorf("Process() active calls = %v", items.ActiveCalls)
		}
	})

	t.Run("Unknown Code Processed Without State Change", func(t *testing.T) {
		items := &MockItems{}
		marked := false
		repo := &MockRepository{
			MarkProcessedFunc: func(ctx context.Context, id string, processedAt time.Time) error {
				marked = true
				return nil
			},
		}
		p := NewProcessor(repo, items, &MockRecorder{})

		event := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "SOME_FUTURE_CODE", ItemID: &itemID}
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error: %v", err)
		}
		if len(items.ErrorCalls)+len(items.ActiveCalls) != 0 {
			t.Error("Process() unknown code must not change item state")
		}
		if !marked {
			t.Error("Process() unknown code must still be marked processed")
		}
	})

	t.Run("Already Processed Is A No-Op", func(t *testing.T) {
		items := &MockItems{}
		p := NewProcessor(&MockRepository{
			MarkProcessedFunc: func(ctx context.Context, id string, processedAt time.Time) error {
				t.Error("Process() must not re-mark a processed event")
				return nil
			},
		}, items, &MockRecorder{})

		event := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_OK", ItemID: &itemID, Processed: true}
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error: %v", err)
		}
		if len(items.ActiveCalls) != 0 {
			t.Error("Process() must not re-apply effects for processed events")
		}
	})

	t.Run("Effect Failure Leaves Event Unprocessed", func(t *testing.T) {
		items := &MockItems{
			MarkErrorFunc: func(ctx context.Context, externalItemID, errorCode string) error {
				return errors.New("db down")
			},
		}
		p := NewProcessor(&MockRepository{
			MarkProcessedFunc: func(ctx context.Context, id string, processedAt time.Time) error {
				t.Error("Process() must not mark processed when the effect failed")
				return nil
			},
		}, items, &MockRecorder{})

		event := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_LOGIN_REQUIRED", ItemID: &itemID}
		if err := p.Process(ctx, event); err == nil {
			t.Error("Process() expected error when effect fails")
		}
	})

	t.Run("Idempotent Reapplication", func(t *testing.T) {
		// Applying the same notification twice must leave item state
		// identical to applying it once: the same MarkError call repeats.
		items := &MockItems{}
		p := NewProcessor(&MockRepository{}, items, &MockRecorder{})

		event := &Event{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_LOGIN_REQUIRED", ItemID: &itemID, ErrorCode: &errCode}
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error: %v", err)
		}
		event.Processed = false
		if err := p.Process(ctx, event); err != nil {
			t.Fatalf("Process() unexpected error on reapply: %v", err)
		}
		for _, call := range items.ErrorCalls {
			if call != "item-1:ITEM_LOGIN_REQUIRED" {
				t.Errorf("reapplication produced a different transition: %v", items.ErrorCalls)
			}
		}
	})
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	itemID := "item-1"

	t.Run("Reprocesses Unprocessed Events", func(t *testing.T) {
		events := []*Event{
			{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_OK", ItemID: &itemID},
			{ID: "evt-2", WebhookType: "ITEM", WebhookCode: "UNKNOWN"},
		}
		repo := &MockRepository{
			ListUnprocessedFunc: func(ctx context.Context, limit int) ([]*Event, error) {
				return events, nil
			},
		}
		items := &MockItems{}
		p := NewProcessor(repo, items, &MockRecorder{})

		processed, err := p.Sweep(ctx, 100)
		if err != nil {
			t.Fatalf("Sweep() unexpected error: %v", err)
		}
		if processed != 2 {
			t.Errorf("Sweep() processed = %d, want 2", processed)
		}
		if len(items.ActiveCalls) != 1 {
			t.Errorf("Sweep() active calls = %v, want one", items.ActiveCalls)
		}
	})

	t.Run("Continues Past Failures", func(t *testing.T) {
		events := []*Event{
			{ID: "evt-1", WebhookType: "ITEM", WebhookCode: "ITEM_OK", ItemID: &itemID},
			{ID: "evt-2", WebhookType: "ITEM", WebhookCode: "ITEM_OK", ItemID: &itemID},
		}
		calls := 0
		items := &MockItems{
			MarkActiveFunc: func(ctx context.Context, externalItemID string) error {
				calls++
				if calls == 1 {
					return fmt.Errorf("transient failure")
				}
				return nil
			},
		}
		repo := &MockRepository{
			ListUnprocessedFunc: func(ctx context.Context, limit int) ([]*Event, error) {
				return events, nil
			},
		}
		p := NewProcessor(repo, items, &MockRecorder{})

		processed, err := p.Sweep(ctx, 100)
		if err != nil {
			t.Fatalf("Sweep() unexpected error: %v", err)
		}
		if processed != 1 {
			t.Errorf("Sweep() processed = %d, want 1", processed)
		}
	})
}
