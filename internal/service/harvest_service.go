package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/datastore"
	"github.com/iatidata/sector-harvester/internal/filter"
	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// noCursor is the "current" cursor before the first request. It never equals
// datastore.StartCursor, so the loop body always runs at least once.
const noCursor = "NONE"

// PageFetcher fetches one page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (*model.Page, error)
}

// ActivitySink persists an included activity.
type ActivitySink interface {
	Save(ctx context.Context, runID, identifier string, a *model.Activity) error
}

// Cleaner is implemented by sinks that can drop all previously stored activities.
type Cleaner interface {
	Clean(ctx context.Context) (int, error)
}

// RunStatusStore records harvest summaries.
type RunStatusStore interface {
	Save(ctx context.Context, summary *model.RunSummary) error
}

// HarvestOptions tunes a harvest run.
type HarvestOptions struct {
	// PageDelay is the minimum gap between two page requests.
	PageDelay time.Duration
	// MaxPages stops the run after this many pages; 0 walks until the cursor repeats.
	MaxPages int
	// DuplicatePolicy is config.DuplicateKeepFirst or config.DuplicateKeepLast.
	DuplicatePolicy string
	// CleanOutput empties every cleanable sink before the first request.
	CleanOutput bool
}

// HarvestService walks the Datastore cursor, filters each activity and
// hands matches to the configured sinks. It is strictly sequential.
type HarvestService struct {
	fetcher PageFetcher
	filter  *filter.SectorFilter
	sinks   []ActivitySink
	status  RunStatusStore
	opts    HarvestOptions
	log     zerolog.Logger
}

// NewHarvestService creates a new HarvestService.
func NewHarvestService(fetcher PageFetcher, f *filter.SectorFilter, sinks []ActivitySink, opts HarvestOptions, log zerolog.Logger) *HarvestService {
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = config.DuplicateKeepLast
	}
	return &HarvestService{
		fetcher: fetcher,
		filter:  f,
		sinks:   sinks,
		opts:    opts,
		log:     log.With().Str("component", "harvest_service").Logger(),
	}
}

// WithRunStatus records each run's summary in store.
func (s *HarvestService) WithRunStatus(store RunStatusStore) *HarvestService {
	s.status = store
	return s
}

// cursorState holds the two cursors compared for termination.
type cursorState struct {
	current string
	next    string
}

func (c cursorState) done() bool {
	return c.next == c.current
}

// advance moves to the cursor returned by the last page. A missing cursor
// is treated as the end of results.
func (c *cursorState) advance(returned string) {
	c.current = c.next
	if returned == "" {
		c.next = c.current
		return
	}
	c.next = returned
}

// Run performs one full harvest. A non-success response aborts the run and
// is returned; per-record decode and write failures are logged and counted.
func (s *HarvestService) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := s.log.With().Str("run_id", summary.RunID).Logger()
	log.Info().
		Int("max_pages", s.opts.MaxPages).
		Dur("page_delay", s.opts.PageDelay).
		Str("duplicate_policy", s.opts.DuplicatePolicy).
		Msg("Harvest started")

	err := s.run(ctx, summary, log)
	s.finish(ctx, summary, err, log)
	return summary, err
}

func (s *HarvestService) run(ctx context.Context, summary *model.RunSummary, log zerolog.Logger) error {
	if s.opts.CleanOutput {
		if err := s.clean(ctx, log); err != nil {
			return err
		}
	}

	limit := rate.Inf
	if s.opts.PageDelay > 0 {
		limit = rate.Every(s.opts.PageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	seen := make(map[string]struct{})
	cursor := cursorState{current: noCursor, next: datastore.StartCursor}

	for !cursor.done() {
		if s.opts.MaxPages > 0 && summary.Pages >= s.opts.MaxPages {
			summary.Truncated = true
			log.Warn().Int("pages", summary.Pages).Msg("Page limit reached, stopping before the cursor is exhausted")
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for next page: %w", err)
		}

		log.Debug().Str("cursor", cursor.next).Msg("Requesting page")
		fetchStart := time.Now()
		page, err := s.fetcher.FetchPage(ctx, cursor.next)
		pageFetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", summary.Pages+1, err)
		}
		summary.Pages++
		pagesFetchedCounter.Inc()

		for _, doc := range page.Response.Docs {
			s.processDoc(ctx, summary, seen, doc, log)
		}

		if page.NextCursorMark == "" {
			log.Warn().Msg("Response carried no nextCursorMark, treating as last page")
		}
		cursor.advance(page.NextCursorMark)
		summary.LastCursor = cursor.next

		log.Info().
			Int("page", summary.Pages).
			Int("docs", len(page.Response.Docs)).
			Int("included_total", summary.Included).
			Msg("Page processed")
	}
	return nil
}

func (s *HarvestService) processDoc(ctx context.Context, summary *model.RunSummary, seen map[string]struct{}, doc model.Doc, log zerolog.Logger) {
	summary.Docs++
	docsCounter.Inc()
	identifier := strings.TrimSpace(doc.IATIIdentifier)

	activity, err := model.ParseActivity(doc.IATIJSON)
	if err == nil && identifier == "" {
		err = model.ErrMissingIdentifier
	}
	if err != nil {
		summary.DecodeFailures++
		recordFailureCounter.WithLabelValues(stageDecode).Inc()
		log.Error().Err(err).Str("iati_identifier", identifier).Msg("Failed to decode activity")
		return
	}

	match, ok := s.filter.Match(activity)
	if !ok {
		return
	}
	summary.Included++
	includedCounter.Inc()

	// seen only holds identifiers every sink accepted, so a failed first copy
	// does not block a later one under the keep-first policy.
	if _, dup := seen[identifier]; dup {
		if s.opts.DuplicatePolicy == config.DuplicateKeepFirst {
			summary.SkippedDuplicates++
			recordFailureCounter.WithLabelValues(stageDuplicate).Inc()
			log.Debug().Str("iati_identifier", identifier).Msg("Duplicate identifier, keeping first copy")
			return
		}
		log.Debug().Str("iati_identifier", identifier).Msg("Duplicate identifier, replacing earlier copy")
	}

	failed := false
	for _, sink := range s.sinks {
		if err := sink.Save(ctx, summary.RunID, identifier, activity); err != nil {
			failed = true
			log.Error().Err(err).Str("iati_identifier", identifier).Msg("Failed to store activity")
		}
	}
	if failed {
		summary.WriteFailures++
		recordFailureCounter.WithLabelValues(stageWrite).Inc()
		return
	}
	seen[identifier] = struct{}{}
	summary.Written++
	writtenCounter.Inc()

	log.Debug().
		Str("iati_identifier", identifier).
		Str("sector_code", match.Code()).
		Str("sector", config.SectorLabel(match.Code())).
		Msg("Activity stored")
}

func (s *HarvestService) clean(ctx context.Context, log zerolog.Logger) error {
	for _, sink := range s.sinks {
		c, ok := sink.(Cleaner)
		if !ok {
			continue
		}
		n, err := c.Clean(ctx)
		if err != nil {
			return fmt.Errorf("clean previous output: %w", err)
		}
		log.Info().Int("removed", n).Str("sink", fmt.Sprintf("%T", sink)).Msg("Previous output removed")
	}
	return nil
}

func (s *HarvestService) finish(ctx context.Context, summary *model.RunSummary, err error, log zerolog.Logger) {
	finished := time.Now().UTC()
	summary.FinishedAt = &finished

	switch {
	case err == nil:
		summary.Status = model.RunStatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		summary.Status = model.RunStatusCancelled
		summary.Error = err.Error()
	default:
		summary.Status = model.RunStatusFailed
		summary.Error = err.Error()
	}
	lastRunGauge.WithLabelValues(string(summary.Status)).Set(float64(finished.Unix()))

	log.Info().
		Str("status", string(summary.Status)).
		Int("pages", summary.Pages).
		Int("docs", summary.Docs).
		Int("included", summary.Included).
		Int("written", summary.Written).
		Int("skipped_duplicates", summary.SkippedDuplicates).
		Int("decode_failures", summary.DecodeFailures).
		Int("write_failures", summary.WriteFailures).
		Bool("truncated", summary.Truncated).
		Dur("elapsed", finished.Sub(summary.StartedAt)).
		Msg("Harvest finished")

	if s.status == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.status.Save(saveCtx, summary); err != nil {
		log.Warn().Err(err).Msg("Failed to record run summary")
	}
}
