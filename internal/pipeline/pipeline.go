// Package pipeline orchestrates catalog records through fetch, merge,
// stack, and relabel.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/opera-tools/rastack/internal/catalog"
	"github.com/opera-tools/rastack/internal/config"
	"github.com/opera-tools/rastack/internal/source"
	"github.com/opera-tools/rastack/pkg/raster"
)

// SkippedTag records a stack slice dropped because its granules could
// not be read.
type SkippedTag struct {
	Tag string
	Err error
}

// Result is the output of a pipeline run.
type Result struct {
	Stack   *raster.Stack
	Map     *raster.RelabelMap
	Skipped []SkippedTag
}

// Pipeline wires the reader and configuration together.
type Pipeline struct {
	reader *source.Reader
	cfg    *config.Config
}

// New creates a pipeline.
func New(reader *source.Reader, cfg *config.Config) *Pipeline {
	return &Pipeline{reader: reader, cfg: cfg}
}

func (p *Pipeline) mergeOptions() (raster.MergeOptions, error) {
	switch p.cfg.Merge.Strategy {
	case "", "last_wins":
		return raster.MergeOptions{Strategy: raster.LastWins}, nil
	case "prefer_valid":
		return raster.MergeOptions{Strategy: raster.PreferValid}, nil
	}
	return raster.MergeOptions{}, fmt.Errorf("unknown merge strategy %q", p.cfg.Merge.Strategy)
}

// BuildStack fetches all records and assembles the stack. Records are
// ordered chronologically first, so tags appear in acquisition order.
// A tag whose granules fail to read is skipped rather than failing the
// run; the run fails only when every tag is skipped or a precondition
// does not hold.
func (p *Pipeline) BuildStack(ctx context.Context, records []catalog.GranuleRecord) (*raster.Stack, []SkippedTag, error) {
	if len(records) == 0 {
		return nil, nil, raster.ErrEmptyInput
	}
	mergeOpts, err := p.mergeOptions()
	if err != nil {
		return nil, nil, err
	}

	catalog.SortByTimestamp(records)
	results := p.reader.ReadAll(ctx, records, p.cfg.Fetch.Workers)

	// A failed read poisons its whole tag: a partial mosaic would hold
	// silent gaps where a tile should be.
	failed := make(map[string]error)
	for _, res := range results {
		if res.Err != nil {
			tag := res.Record.Tag()
			if _, ok := failed[tag]; !ok {
				failed[tag] = res.Err
			}
		}
	}

	var frames []*raster.Frame
	var skipped []SkippedTag
	seen := make(map[string]bool)
	for _, res := range results {
		tag := res.Record.Tag()
		if err, ok := failed[tag]; ok {
			if !seen[tag] {
				seen[tag] = true
				skipped = append(skipped, SkippedTag{Tag: tag, Err: err})
				log.Printf("skipping tag %s: %v", tag, err)
			}
			continue
		}
		frames = append(frames, res.Frame)
	}

	if len(frames) == 0 {
		return nil, skipped, fmt.Errorf("all %d tags failed: %w", len(skipped), skipped[0].Err)
	}

	st, err := raster.NewStack(frames, mergeOpts)
	if err != nil {
		return nil, skipped, err
	}
	return st, skipped, nil
}

// Run builds the stack and relabels it with the configured class
// table.
func (p *Pipeline) Run(ctx context.Context, records []catalog.GranuleRecord) (*Result, error) {
	st, skipped, err := p.BuildStack(ctx, records)
	if err != nil {
		return nil, err
	}

	cls := p.cfg.Classes
	relabeled, m, err := raster.RelabelStack(st, raster.RelabelOptions{
		Codes:           cls.Codes,
		MissingCode:     cls.MissingCode,
		TransparentCode: cls.TransparentCode,
		CollapseMissing: cls.CollapseMissing,
		Permissive:      cls.Permissive,
	})
	if err != nil {
		return nil, err
	}

	return &Result{Stack: relabeled, Map: m, Skipped: skipped}, nil
}
