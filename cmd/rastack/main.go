// Package main is the entry point for the rastack pipeline CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/opera-tools/rastack/internal/cache"
	"github.com/opera-tools/rastack/internal/catalog"
	"github.com/opera-tools/rastack/internal/config"
	"github.com/opera-tools/rastack/internal/export/zarr"
	"github.com/opera-tools/rastack/internal/pipeline"
	"github.com/opera-tools/rastack/internal/render"
	"github.com/opera-tools/rastack/internal/source"
	"github.com/opera-tools/rastack/pkg/colormap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/rastack.yaml", "Path to configuration file")
	manifestPath := flag.String("manifest", "", "Path to granule manifest JSON")
	indexPath := flag.String("index", "", "Path to local granule index (SQLite)")
	collection := flag.String("collection", "dswx", "Collection name in the granule index")
	outDir := flag.String("out", "./out", "Output directory")
	exportZarr := flag.Bool("zarr", true, "Export the stack as a Zarr store")
	exportPNG := flag.Bool("png", false, "Render per-slice PNG previews")
	maxCloud := flag.Float64("max-cloud", -1, "Drop granules above this cloud cover percentage")
	flag.Parse()

	if *manifestPath == "" && *indexPath == "" {
		log.Fatalf("No granule source given (use -manifest or -index)")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Cancel the run on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var records []catalog.GranuleRecord
	if *manifestPath != "" {
		records, err = catalog.LoadManifest(*manifestPath)
		if err != nil {
			log.Fatalf("Failed to load manifest: %v", err)
		}
	}
	if *indexPath != "" {
		store, err := catalog.NewStore(*indexPath)
		if err != nil {
			log.Fatalf("Failed to open granule index: %v", err)
		}
		defer store.Close()

		if len(records) > 0 {
			if err := store.Save(*collection, records); err != nil {
				log.Fatalf("Failed to index granules: %v", err)
			}
		} else {
			records, err = store.Search(ctx, catalog.Query{Collection: *collection})
			if err != nil {
				log.Fatalf("Failed to search granule index: %v", err)
			}
		}
	}
	if *maxCloud >= 0 {
		before := len(records)
		records = catalog.FilterCloudCover(records, *maxCloud)
		log.Printf("Cloud cover filter kept %d of %d granules", len(records), before)
	}
	log.Printf("Processing %d granules", len(records))

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		GranuleCacheSizeMB: cfg.Cache.GranuleSizeMB,
		GranuleTTL:         time.Duration(cfg.Cache.GranuleTTLMinutes) * time.Minute,
		FrameCacheEntries:  cfg.Cache.FrameEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	reader := source.NewReader(
		source.WithCache(cacheManager),
		source.WithRetries(cfg.Fetch.Retries),
		source.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		}),
	)
	p := pipeline.New(reader, cfg)

	start := time.Now()
	result, err := p.Run(ctx, records)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
	w, h := result.Stack.Shape()
	log.Printf("Built stack: %d slices of %dx%d in %s", result.Stack.Len(), w, h, time.Since(start).Round(time.Millisecond))
	for _, s := range result.Skipped {
		log.Printf("  skipped %s: %v", s.Tag, s.Err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if *exportZarr {
		storePath := filepath.Join(*outDir, "stack.zarr")
		if err := zarr.Write(storePath, result.Stack, result.Map); err != nil {
			log.Fatalf("Failed to export Zarr store: %v", err)
		}
		log.Printf("Wrote %s", storePath)
	}

	if *exportPNG {
		cm := buildColormap(cfg, result.Map.RangeStart, result.Map.Count(), result.Map.TransparentValue())
		renderer := render.NewRenderer()
		opts := render.Options{Scale: cfg.Render.Scale, Legend: cfg.Render.Legend}
		for i, tag := range result.Stack.Tags {
			data, err := renderer.RenderSlice(result.Stack.Slices[i], cm, opts)
			if err != nil {
				log.Fatalf("Failed to render slice %s: %v", tag, err)
			}
			name := fmt.Sprintf("slice_%03d_%s.png", i, sanitize(tag))
			if err := os.WriteFile(filepath.Join(*outDir, name), data, 0644); err != nil {
				log.Fatalf("Failed to write preview: %v", err)
			}
		}
		log.Printf("Wrote %d previews to %s", result.Stack.Len(), *outDir)
	}
}

func buildColormap(cfg *config.Config, start int64, n int, transparent int64) *colormap.Discrete {
	switch cfg.Render.Colormap {
	case "surface_water":
		return colormap.SurfaceWater(start, n, transparent)
	default:
		return colormap.NewDiscrete(colormap.Categorical, start, n, transparent)
	}
}

func sanitize(tag string) string {
	out := []rune(tag)
	for i, r := range out {
		switch r {
		case ':', '/', '\\', ' ':
			out[i] = '-'
		}
	}
	return string(out)
}
