package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opera-tools/rastack/internal/cache"
	"github.com/opera-tools/rastack/internal/catalog"
	"github.com/opera-tools/rastack/pkg/raster"
	"github.com/opera-tools/rastack/pkg/raster/rastertest"
)

func fixtureTIFF() []byte {
	return rastertest.GeoTIFF(rastertest.TIFFOptions{
		Width: 4, Height: 4,
		OriginX: 500000, OriginY: 4100000,
		ResX: 30, ResY: 30,
		EPSG: 32611,
	})
}

func TestReadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "granule.tif")
	if err := os.WriteFile(path, fixtureTIFF(), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	r := NewReader()
	f, err := r.Read(context.Background(), path, "2024-03-01T18:00:00Z")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if f.Tag != "2024-03-01T18:00:00Z" {
		t.Fatalf("expected tag on frame, got %q", f.Tag)
	}
	if f.CRS != "EPSG:32611" {
		t.Fatalf("unexpected crs %q", f.CRS)
	}
}

func TestReadHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		w.Write(fixtureTIFF())
	}))
	defer srv.Close()

	m, err := cache.NewManager(cache.Config{
		GranuleCacheSizeMB: 16,
		GranuleTTL:         time.Minute,
		FrameCacheEntries:  8,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer m.Close()

	r := NewReader(WithCache(m))
	if _, err := r.Read(context.Background(), srv.URL+"/g.tif", "t0"); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	// Second read under the same tag hits the frame cache.
	if _, err := r.Read(context.Background(), srv.URL+"/g.tif", "t0"); err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 origin hit, got %d", got)
	}
	// A different tag misses the frame cache but reuses granule bytes.
	if _, err := r.Read(context.Background(), srv.URL+"/g.tif", "t1"); err != nil {
		t.Fatalf("read under new tag failed: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected granule bytes reused, got %d origin hits", got)
	}
}

func TestReadFailuresAreReadErrors(t *testing.T) {
	t.Run("missingFile", func(t *testing.T) {
		r := NewReader()
		_, err := r.Read(context.Background(), "/no/such/granule.tif", "t0")
		var rerr *raster.ReadError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected ReadError, got %v", err)
		}
		if rerr.URI != "/no/such/granule.tif" {
			t.Fatalf("expected URI in error, got %q", rerr.URI)
		}
	})

	t.Run("httpStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "denied", http.StatusForbidden)
		}))
		defer srv.Close()

		r := NewReader()
		_, err := r.Read(context.Background(), srv.URL+"/g.tif", "t0")
		var rerr *raster.ReadError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected ReadError, got %v", err)
		}
	})
}

func TestReadRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write(fixtureTIFF())
	}))
	defer srv.Close()

	r := NewReader(WithRetries(1))
	if _, err := r.Read(context.Background(), srv.URL+"/g.tif", "t0"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestReadAllPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	var records []catalog.GranuleRecord
	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, "g"+string(rune('a'+i))+".tif")
		if err := os.WriteFile(path, fixtureTIFF(), 0644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		records = append(records, catalog.GranuleRecord{
			URI:       path,
			Timestamp: time.Date(2024, 3, 1+i, 18, 0, 0, 0, time.UTC),
		})
	}
	// One record in the middle fails.
	records[3].URI = filepath.Join(dir, "absent.tif")

	r := NewReader()
	results := r.ReadAll(context.Background(), records, 3)
	if len(results) != len(records) {
		t.Fatalf("expected %d results, got %d", len(records), len(results))
	}
	for i, res := range results {
		if res.Record.URI != records[i].URI {
			t.Fatalf("position %d: expected %q, got %q", i, records[i].URI, res.Record.URI)
		}
		if i == 3 {
			if res.Err == nil {
				t.Fatalf("expected failure for absent granule")
			}
			continue
		}
		if res.Err != nil {
			t.Fatalf("position %d: unexpected error %v", i, res.Err)
		}
		if res.Frame == nil || res.Frame.Tag != records[i].Tag() {
			t.Fatalf("position %d: missing or mistagged frame", i)
		}
	}
}
