// Package batch drives the extraction and reinsertion engines across a
// whole script store. Scripts are processed in parallel and fail
// independently: one broken script never aborts the run or corrupts
// another script's file.
package batch

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"event-translator/internal/export"
	"event-translator/internal/extract"
	"event-translator/internal/reinsert"
	"event-translator/internal/store"
	"event-translator/internal/worker"
)

// Report is the per-run success/failure tally.
type Report struct {
	RunID     string
	Scripts   int
	Succeeded int
	Skipped   int
	Changed   int
	Failures  map[string]error
}

func newReport() *Report {
	return &Report{RunID: uuid.NewString(), Failures: make(map[string]error)}
}

// Failed returns the number of scripts that ended in error.
func (r *Report) Failed() int { return len(r.Failures) }

// Extractor runs the extraction engine over every script in a store and
// feeds the results to an export builder.
type Extractor struct {
	store   store.Store
	workers int
	opts    extract.Options
}

// NewExtractor creates a batch extractor.
func NewExtractor(st store.Store, workers int, opts extract.Options) *Extractor {
	return &Extractor{store: st, workers: workers, opts: opts}
}

// Run extracts every script and returns the populated export builder
// plus the run report. Scripts that fail to load or contain malformed
// commands are tallied and skipped; extraction itself never mutates the
// store.
func (x *Extractor) Run(ctx context.Context) (*export.Builder, *Report, error) {
	ids, err := x.store.List()
	if err != nil {
		return nil, nil, err
	}

	report := newReport()
	report.Scripts = len(ids)

	results := worker.Run(ctx, x.workers, ids, func(ctx context.Context, id string) (*extract.Entries, error) {
		return x.extractScript(id)
	})

	builder := export.NewBuilder()
	for _, res := range results {
		if res.Err != nil {
			report.Failures[res.Input] = res.Err
			log.Error().Err(res.Err).Str("script", res.Input).Msg("Extraction failed")
			continue
		}
		report.Succeeded++
		builder.Add(res.Input, res.Value)
	}
	return builder, report, nil
}

func (x *Extractor) extractScript(id string) (*extract.Entries, error) {
	script, err := x.store.Load(id)
	if err != nil {
		return nil, err
	}

	merged := extract.NewEntries()
	for _, ev := range script.Events {
		for pi, page := range ev.Pages {
			entries, err := extract.Page(page, x.opts)
			if err != nil {
				return nil, fmt.Errorf("event %d page %d: %w", ev.ID, pi+1, err)
			}
			for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
				merged.Set(pair.Key, pair.Value)
			}
		}
	}
	return merged, nil
}

// Importer runs the reinsertion engine over every script named in a
// translation document.
type Importer struct {
	store   store.Store
	engine  *reinsert.Engine
	workers int
}

// NewImporter creates a batch importer.
func NewImporter(st store.Store, engine *reinsert.Engine, workers int) *Importer {
	return &Importer{store: st, engine: engine, workers: workers}
}

type importOutcome struct {
	changed bool
	skipped bool
}

// Run applies translations to every script the document has a section
// for. A script is written back only when at least one of its pages
// changed, and only after its whole pass completed without error; a
// per-page failure fails that script and leaves its file untouched.
func (im *Importer) Run(ctx context.Context, translations export.Translations) (*Report, error) {
	ids, err := im.store.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	report := newReport()
	report.Scripts = len(ids)

	results := worker.Run(ctx, im.workers, ids, func(ctx context.Context, id string) (importOutcome, error) {
		return im.importScript(id, translations)
	})

	for _, res := range results {
		switch {
		case res.Err != nil:
			report.Failures[res.Input] = res.Err
			log.Error().Err(res.Err).Str("script", res.Input).Msg("Import failed")
		case res.Value.skipped:
			report.Skipped++
		default:
			report.Succeeded++
			if res.Value.changed {
				report.Changed++
			}
		}
	}
	return report, nil
}

func (im *Importer) importScript(id string, translations export.Translations) (importOutcome, error) {
	// A script absent from the document is out of scope for this run.
	// An empty section still runs, so that removed translations roll
	// back.
	if _, ok := translations[id]; !ok {
		return importOutcome{skipped: true}, nil
	}
	lookup := translations.Lookup(id)

	script, err := im.store.Load(id)
	if err != nil {
		return importOutcome{}, err
	}

	changed := false
	for ei := range script.Events {
		ev := &script.Events[ei]
		for pi := range ev.Pages {
			pageChanged, err := im.engine.UpdatePage(&ev.Pages[pi], lookup)
			if err != nil {
				return importOutcome{}, fmt.Errorf("event %d page %d: %w", ev.ID, pi+1, err)
			}
			changed = changed || pageChanged
		}
	}

	if !changed {
		return importOutcome{}, nil
	}
	if err := im.store.Save(id, script); err != nil {
		return importOutcome{}, err
	}
	log.Debug().Str("script", id).Msg("Script updated")
	return importOutcome{changed: true}, nil
}
