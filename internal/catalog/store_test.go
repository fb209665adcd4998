package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndSearch(t *testing.T) {
	s := newTestStore(t)
	cc := func(v float64) *float64 { return &v }
	records := []GranuleRecord{
		{URI: "b.tif", Timestamp: ts("2024-03-13T18:00:00Z"), TileID: "T11SQA", CloudCover: cc(40)},
		{URI: "a.tif", Timestamp: ts("2024-03-01T18:00:00Z"), TileID: "T11SQA", CloudCover: cc(5)},
		{URI: "c.tif", Timestamp: ts("2024-04-06T18:00:00Z")},
	}
	if err := s.Save("dswx", records); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	t.Run("ordered", func(t *testing.T) {
		got, err := s.Search(context.Background(), Query{Collection: "dswx"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 3 || got[0].URI != "a.tif" || got[2].URI != "c.tif" {
			t.Fatalf("unexpected order: %+v", got)
		}
		if got[0].CloudCover == nil || *got[0].CloudCover != 5 {
			t.Fatalf("expected cloud cover round trip, got %+v", got[0])
		}
	})

	t.Run("timeWindow", func(t *testing.T) {
		got, err := s.Search(context.Background(), Query{
			Start: ts("2024-03-10T00:00:00Z"),
			End:   ts("2024-03-20T00:00:00Z"),
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 1 || got[0].URI != "b.tif" {
			t.Fatalf("unexpected window result: %+v", got)
		}
	})

	t.Run("cloudCover", func(t *testing.T) {
		max := 10.0
		got, err := s.Search(context.Background(), Query{MaxCloudCover: &max})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		// b.tif filtered out; c.tif has no estimate and is kept.
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %+v", got)
		}
	})
}

func TestStoreUpsert(t *testing.T) {
	s := newTestStore(t)
	r := GranuleRecord{URI: "a.tif", Timestamp: ts("2024-03-01T18:00:00Z")}
	if err := s.Save("dswx", []GranuleRecord{r}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	r.TileID = "T11SQA"
	if err := s.Save("dswx", []GranuleRecord{r}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	got, err := s.Search(context.Background(), Query{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 1 || got[0].TileID != "T11SQA" {
		t.Fatalf("expected upsert, got %+v", got)
	}
}
