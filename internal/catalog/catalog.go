// Package catalog defines the contract with granule catalogs and local
// manifests. Searching a remote catalog is a collaborator concern; this
// package only shapes its results for the pipeline.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// GranuleRecord identifies one downloadable raster granule.
type GranuleRecord struct {
	URI        string    `json:"uri"`
	Timestamp  time.Time `json:"timestamp"`
	TileID     string    `json:"tile_id,omitempty"`
	BandName   string    `json:"band_name,omitempty"`
	CloudCover *float64  `json:"cloud_cover,omitempty"`
}

// Tag returns the stack tag for the record. Records tagged by band use
// the band name; otherwise the acquisition timestamp in RFC 3339.
func (r GranuleRecord) Tag() string {
	if r.BandName != "" {
		return r.BandName
	}
	return r.Timestamp.UTC().Format(time.RFC3339)
}

// Query describes a catalog search.
type Query struct {
	Collection    string
	Start, End    time.Time
	MinX, MinY    float64
	MaxX, MaxY    float64
	MaxCloudCover *float64
}

// Searcher is implemented by catalog clients.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]GranuleRecord, error)
}

// FilterCloudCover drops records whose cloud cover exceeds max. Records
// without a cloud cover estimate are kept.
func FilterCloudCover(records []GranuleRecord, max float64) []GranuleRecord {
	out := records[:0:0]
	for _, r := range records {
		if r.CloudCover != nil && *r.CloudCover > max {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortByTimestamp orders records chronologically, oldest first. Ties
// break on tile ID so the ordering is total.
func SortByTimestamp(records []GranuleRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].TileID < records[j].TileID
	})
}

// TagGroup holds the records sharing one stack tag.
type TagGroup struct {
	Tag     string
	Records []GranuleRecord
}

// GroupByTag partitions records into tag groups, preserving the order
// in which each tag first appears.
func GroupByTag(records []GranuleRecord) []TagGroup {
	index := make(map[string]int)
	var groups []TagGroup
	for _, r := range records {
		tag := r.Tag()
		i, ok := index[tag]
		if !ok {
			i = len(groups)
			index[tag] = i
			groups = append(groups, TagGroup{Tag: tag})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// LoadManifest reads granule records from a JSON file, either a bare
// array or an object with a "granules" key.
func LoadManifest(path string) ([]GranuleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var records []GranuleRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapper struct {
		Granules []GranuleRecord `json:"granules"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return wrapper.Granules, nil
}
