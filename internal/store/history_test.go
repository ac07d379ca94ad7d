package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/digit-api/internal/model"
)

func TestHistorySaveAndRecent(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	for _, p := range []model.Prediction{{Digit: 3, Confidence: 85.8}, {Digit: 7, Confidence: 99.1}, {Digit: 3, Confidence: 60}} {
		if _, err := h.Save(ctx, "json", p); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recs, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Digit != 3 || recs[0].Confidence != 60 || recs[1].Digit != 7 {
		t.Fatalf("unexpected order: %+v", recs)
	}
	if recs[0].Source != "json" || recs[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", recs[0])
	}

	counts, err := h.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[3] != 2 || counts[7] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestHistoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Save(context.Background(), "upload", model.Prediction{Digit: 1, Confidence: 42}); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	recs, err := h.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Source != "upload" {
		t.Fatalf("unexpected records after reopen: %+v", recs)
	}
}
