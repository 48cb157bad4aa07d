package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/serisow/docquery/document"
	"github.com/serisow/docquery/services/rag_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingIndex struct {
	calls int
}

func (c *countingIndex) ReindexIfNeeded(ctx context.Context) error {
	c.calls++
	return nil
}

func TestRunOnceFailsStuckDocuments(t *testing.T) {
	store := rag_service.NewMemoryStore()
	ctx := context.Background()

	stuck := &document.Document{ID: "stuck", Title: "stuck.txt", Status: document.StatusPending}
	if err := store.CreateDocument(ctx, stuck); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkProcessing(ctx, stuck.ID); err != nil {
		t.Fatal(err)
	}

	done := &document.Document{ID: "done", Title: "done.txt", Status: document.StatusPending}
	store.CreateDocument(ctx, done)
	store.MarkProcessing(ctx, done.ID)
	store.MarkCompleted(ctx, done.ID, 2)

	time.Sleep(5 * time.Millisecond)

	index := &countingIndex{}
	s := New(store, index, time.Millisecond, time.Minute, testLogger())
	s.runOnce()

	got, err := store.GetDocument(ctx, stuck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != document.StatusFailed {
		t.Errorf("stuck document should be failed after lease expiry, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("reaped document must carry an error message")
	}

	got, _ = store.GetDocument(ctx, done.ID)
	if got.Status != document.StatusCompleted {
		t.Errorf("completed document must stay completed, got %s", got.Status)
	}

	if index.calls != 1 {
		t.Errorf("expected one index maintenance call, got %d", index.calls)
	}
}

func TestRunOnceLeavesFreshProcessingAlone(t *testing.T) {
	store := rag_service.NewMemoryStore()
	ctx := context.Background()

	doc := &document.Document{ID: "fresh", Title: "fresh.txt", Status: document.StatusPending}
	store.CreateDocument(ctx, doc)
	store.MarkProcessing(ctx, doc.ID)

	s := New(store, nil, time.Hour, time.Minute, testLogger())
	s.runOnce()

	got, _ := store.GetDocument(ctx, doc.ID)
	if got.Status != document.StatusProcessing {
		t.Errorf("document within its lease must keep processing, got %s", got.Status)
	}
}

func TestStartStop(t *testing.T) {
	store := rag_service.NewMemoryStore()
	s := New(store, nil, time.Minute, 10*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
