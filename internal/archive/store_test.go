package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/models"
)

func testEntries(base time.Time) []models.LogEntry {
	return []models.LogEntry{
		{Seq: 1, Timestamp: base, Text: "status", Tag: models.LogTagOutgoing},
		{Seq: 2, Timestamp: base.Add(1 * time.Second), Text: "TOTAL:5", Tag: models.LogTagIncoming},
		{Seq: 3, Timestamp: base.Add(2 * time.Second), Text: "STATE:READY", Tag: models.LogTagIncoming},
		{Seq: 4, Timestamp: base.Add(3 * time.Second), Text: "ERR:BAD_CMD", Tag: models.LogTagError},
		{Seq: 5, Timestamp: base.Add(4 * time.Second), Text: "EOT", Tag: models.LogTagSuccess},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAtPath(filepath.Join(t.TempDir(), "capture.duckdb"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSearchReturnsAllInOrder(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Truncate(time.Second)
	for _, e := range testEntries(base) {
		s.Add(e)
	}

	got, total, err := s.Search(context.Background(), Query{}, 1, 100)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(got) != 5 {
		t.Fatalf("entries = %d, want 5", len(got))
	}
	for i, e := range got {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
	if got[1].Text != "TOTAL:5" || got[1].Tag != models.LogTagIncoming {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestSearchFilters(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Truncate(time.Second)
	for _, e := range testEntries(base) {
		s.Add(e)
	}

	t.Run("by tag", func(t *testing.T) {
		got, total, err := s.Search(context.Background(), Query{Tag: models.LogTagError}, 1, 100)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 1 || len(got) != 1 || got[0].Text != "ERR:BAD_CMD" {
			t.Errorf("got %v (total %d)", got, total)
		}
	})

	t.Run("by substring, case-insensitive", func(t *testing.T) {
		got, total, err := s.Search(context.Background(), Query{Contains: "state:"}, 1, 100)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 1 || len(got) != 1 || got[0].Text != "STATE:READY" {
			t.Errorf("got %v (total %d)", got, total)
		}
	})

	t.Run("by time range", func(t *testing.T) {
		q := Query{
			From: base.Add(1 * time.Second).UnixMilli(),
			To:   base.Add(3 * time.Second).UnixMilli(),
		}
		_, total, err := s.Search(context.Background(), q, 1, 100)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	})

	t.Run("no match", func(t *testing.T) {
		got, total, err := s.Search(context.Background(), Query{Contains: "nothing here"}, 1, 100)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 0 || len(got) != 0 {
			t.Errorf("got %v (total %d), want empty", got, total)
		}
	})
}

func TestSearchPagination(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	for i := 1; i <= 25; i++ {
		s.Add(models.LogEntry{
			Seq:       uint64(i),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Text:      "line",
			Tag:       models.LogTagIncoming,
		})
	}

	page2, total, err := s.Search(context.Background(), Query{}, 2, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 25 {
		t.Errorf("total = %d, want 25", total)
	}
	if len(page2) != 10 {
		t.Fatalf("page 2 size = %d, want 10", len(page2))
	}
	if page2[0].Seq != 11 || page2[9].Seq != 20 {
		t.Errorf("page 2 spans seq %d..%d, want 11..20", page2[0].Seq, page2[9].Seq)
	}

	page3, _, err := s.Search(context.Background(), Query{}, 3, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page3) != 5 {
		t.Errorf("page 3 size = %d, want 5", len(page3))
	}
}

func TestCaptureFromChannel(t *testing.T) {
	s := openTestStore(t)

	ch := make(chan models.LogEntry, 8)
	s.Start(ch)

	base := time.Now()
	ch <- models.LogEntry{Seq: 1, Timestamp: base, Text: "status", Tag: models.LogTagOutgoing}
	ch <- models.LogEntry{Seq: 2, Timestamp: base, Text: "EOT", Tag: models.LogTagSuccess}
	close(ch)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, total, err := s.Search(context.Background(), Query{}, 1, 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("captured entries never became searchable")
}
