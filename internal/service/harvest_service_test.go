package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iatidata/sector-harvester/internal/config"
	"github.com/iatidata/sector-harvester/internal/datastore"
	"github.com/iatidata/sector-harvester/internal/filter"
	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/iatidata/sector-harvester/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ─── Fakes ─────────────────────────────────────────────────────────────

type scriptedFetcher struct {
	pages     map[string]*model.Page
	errAt     map[string]error
	requested []string
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, cursor string) (*model.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.requested = append(f.requested, cursor)
	if err, ok := f.errAt[cursor]; ok {
		return nil, err
	}
	p, ok := f.pages[cursor]
	if !ok {
		return nil, fmt.Errorf("unexpected cursor %q", cursor)
	}
	return p, nil
}

type savedActivity struct {
	runID string
	id    string
	raw   string
}

type recordingSink struct {
	saved    []savedActivity
	failIDs  map[string]bool
	failOnce map[string]bool
	cleaned  int
}

func (s *recordingSink) Save(_ context.Context, runID, identifier string, a *model.Activity) error {
	if s.failIDs[identifier] {
		return errors.New("disk full")
	}
	if s.failOnce[identifier] {
		delete(s.failOnce, identifier)
		return errors.New("disk full")
	}
	s.saved = append(s.saved, savedActivity{runID: runID, id: identifier, raw: string(a.Raw)})
	return nil
}

func (s *recordingSink) Clean(context.Context) (int, error) {
	s.cleaned++
	n := len(s.saved)
	s.saved = nil
	return n, nil
}

type memoryRunStore struct {
	mu    sync.Mutex
	saved []*model.RunSummary
}

func (m *memoryRunStore) Save(_ context.Context, summary *model.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *summary
	m.saved = append(m.saved, &cp)
	return nil
}

// ─── Helpers ───────────────────────────────────────────────────────────

func sectorDoc(t *testing.T, id, code, vocabulary string) model.Doc {
	t.Helper()
	sector := map[string]string{"@code": code}
	if vocabulary != "" {
		sector["@vocabulary"] = vocabulary
	}
	payload, err := json.Marshal(map[string]any{
		"iati-activity": []any{
			map[string]any{"iati-identifier": id, "sector": []any{sector}},
		},
	})
	require.NoError(t, err)
	return model.Doc{IATIIdentifier: id, IATIJSON: string(payload)}
}

func page(next string, docs ...model.Doc) *model.Page {
	p := &model.Page{NextCursorMark: next}
	p.Response.Docs = docs
	p.Response.NumFound = len(docs)
	return p
}

func newHarvester(fetcher PageFetcher, sinks []ActivitySink, opts HarvestOptions) *HarvestService {
	return NewHarvestService(fetcher, filter.NewSectorFilter(config.SectorCodes()), sinks, opts, zerolog.Nop())
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestHarvest_EndToEndWritesOnlyIncludedActivity(t *testing.T) {
	included := sectorDoc(t, "XM-DAC/1:A", "15132", "1")
	excluded := sectorDoc(t, "XM-DAC-2", "15132", "2")

	var requests []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get(datastore.SubscriptionKeyHeader))
		cursor := r.URL.Query().Get("cursorMark")
		requests = append(requests, cursor)

		var p *model.Page
		switch cursor {
		case "*":
			p = page("AoE1", included, excluded)
		case "AoE1":
			p = page("AoE1")
		default:
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(p))
	}))
	defer ts.Close()

	searchURL, err := datastore.BuildSearchURL(ts.URL+"/select", config.SectorCodes(), datastore.DefaultRows)
	require.NoError(t, err)
	client := datastore.NewClient(searchURL, "test-key", 5*time.Second)

	dir := t.TempDir()
	files, err := repository.NewActivityFileRepository(dir)
	require.NoError(t, err)

	summary, err := newHarvester(client, []ActivitySink{files}, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"*", "AoE1"}, requests)
	assert.Equal(t, model.RunStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, summary.Docs)
	assert.Equal(t, 1, summary.Included)
	assert.Equal(t, 1, summary.Written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "XM-DAC_1_A.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t,
		"{\n  \"iati-identifier\": \"XM-DAC/1:A\",\n  \"sector\": [\n    {\n      \"@code\": \"15132\",\n      \"@vocabulary\": \"1\"\n    }\n  ]\n}",
		string(data))
}

func TestHarvest_TerminatesWhenCursorRepeats(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a", sectorDoc(t, "A", "15132", "")),
		"a": page("b", sectorDoc(t, "B", "15132", "")),
		"b": page("c", sectorDoc(t, "C", "15132", "")),
		"c": page("c"),
	}}
	sink := &recordingSink{}

	summary, err := newHarvester(fetcher, []ActivitySink{sink}, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"*", "a", "b", "c"}, fetcher.requested); diff != "" {
		t.Errorf("requested cursors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, summary.Pages)
	assert.Equal(t, "c", summary.LastCursor)
	assert.False(t, summary.Truncated)
	assert.Len(t, sink.saved, 3)
}

func TestHarvest_SinglePageWhenCursorNeverMoves(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{"*": page("*")}}

	summary, err := newHarvester(fetcher, nil, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, fetcher.requested)
	assert.Equal(t, 1, summary.Pages)
}

func TestHarvest_MissingCursorEndsRun(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a"),
		"a": page(""),
	}}

	_, err := newHarvester(fetcher, nil, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"*", "a"}, fetcher.requested)
}

func TestHarvest_NonSuccessStatusIsFatal(t *testing.T) {
	fetcher := &scriptedFetcher{
		pages: map[string]*model.Page{"*": page("a", sectorDoc(t, "A", "15132", "1"))},
		errAt: map[string]error{"a": &datastore.StatusError{StatusCode: http.StatusServiceUnavailable}},
	}
	sink := &recordingSink{}
	store := &memoryRunStore{}

	summary, err := newHarvester(fetcher, []ActivitySink{sink}, HarvestOptions{}).
		WithRunStatus(store).
		Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrUnexpectedStatus)
	assert.Equal(t, []string{"*", "a"}, fetcher.requested)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
	assert.NotEmpty(t, summary.Error)
	// Output from earlier pages is left in place.
	assert.Len(t, sink.saved, 1)

	require.Len(t, store.saved, 1)
	assert.Equal(t, model.RunStatusFailed, store.saved[0].Status)
	assert.NotNil(t, store.saved[0].FinishedAt)
}

func TestHarvest_RecordFailuresDoNotAbort(t *testing.T) {
	broken := model.Doc{IATIIdentifier: "BROKEN", IATIJSON: `{"iati-activity":[`}
	empty := model.Doc{IATIIdentifier: "EMPTY", IATIJSON: `{"iati-activity":[]}`}
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("*", broken, empty, sectorDoc(t, "FAILS", "15132", "1"), sectorDoc(t, "OK", "15132", "1")),
	}}
	sink := &recordingSink{failIDs: map[string]bool{"FAILS": true}}

	summary, err := newHarvester(fetcher, []ActivitySink{sink}, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Docs)
	assert.Equal(t, 2, summary.DecodeFailures)
	assert.Equal(t, 2, summary.Included)
	assert.Equal(t, 1, summary.WriteFailures)
	assert.Equal(t, 1, summary.Written)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "OK", sink.saved[0].id)
	assert.Equal(t, summary.RunID, sink.saved[0].runID)
}

func TestHarvest_BlankIdentifierIsDecodeFailure(t *testing.T) {
	blank := sectorDoc(t, "  ", "15132", "1")
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("*", blank, sectorDoc(t, "OK", "15132", "1")),
	}}
	sink := &recordingSink{}

	summary, err := newHarvester(fetcher, []ActivitySink{sink}, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DecodeFailures)
	assert.Equal(t, 1, summary.Included)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "OK", sink.saved[0].id)
}

func TestHarvest_DuplicatePolicy(t *testing.T) {
	first := sectorDoc(t, "DUP", "15132", "1")
	second := sectorDoc(t, " DUP ", "15220", "")
	pages := func() *scriptedFetcher {
		return &scriptedFetcher{pages: map[string]*model.Page{
			"*": page("a", first),
			"a": page("a", second),
		}}
	}

	t.Run("last wins by default", func(t *testing.T) {
		sink := &recordingSink{}
		summary, err := newHarvester(pages(), []ActivitySink{sink}, HarvestOptions{}).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, sink.saved, 2)
		assert.Contains(t, sink.saved[1].raw, "15220")
		assert.Zero(t, summary.SkippedDuplicates)
	})

	t.Run("first keeps the earliest copy", func(t *testing.T) {
		sink := &recordingSink{}
		opts := HarvestOptions{DuplicatePolicy: config.DuplicateKeepFirst}
		summary, err := newHarvester(pages(), []ActivitySink{sink}, opts).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, sink.saved, 1)
		assert.Contains(t, sink.saved[0].raw, "15132")
		assert.Equal(t, 1, summary.SkippedDuplicates)
		assert.Equal(t, 2, summary.Included)
		assert.Equal(t, 1, summary.Written)
	})

	t.Run("first retries after a failed write", func(t *testing.T) {
		sink := &recordingSink{failOnce: map[string]bool{"DUP": true}}
		opts := HarvestOptions{DuplicatePolicy: config.DuplicateKeepFirst}
		summary, err := newHarvester(pages(), []ActivitySink{sink}, opts).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, sink.saved, 1)
		assert.Contains(t, sink.saved[0].raw, "15220")
		assert.Equal(t, 1, summary.WriteFailures)
		assert.Equal(t, 1, summary.Written)
		assert.Zero(t, summary.SkippedDuplicates)
	})
}

func TestHarvest_MaxPages(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a"),
		"a": page("b"),
		"b": page("b"),
	}}

	store := &memoryRunStore{}
	summary, err := newHarvester(fetcher, nil, HarvestOptions{MaxPages: 2}).
		WithRunStatus(store).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"*", "a"}, fetcher.requested)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, model.RunStatusCompleted, summary.Status)
	assert.True(t, summary.Truncated)
	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].Truncated)
}

func TestHarvest_MaxPagesReachedWithCursorExhausted(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a"),
		"a": page("a"),
	}}

	summary, err := newHarvester(fetcher, nil, HarvestOptions{MaxPages: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.False(t, summary.Truncated)
}

func TestHarvest_CleanOutputBeforeFirstRequest(t *testing.T) {
	sink := &recordingSink{saved: []savedActivity{{id: "STALE"}}}
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{"*": page("*", sectorDoc(t, "FRESH", "15132", "1"))}}

	_, err := newHarvester(fetcher, []ActivitySink{sink}, HarvestOptions{CleanOutput: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sink.cleaned)
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "FRESH", sink.saved[0].id)
}

func TestHarvest_PacesPageRequests(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a"),
		"a": page("b"),
		"b": page("b"),
	}}

	start := time.Now()
	_, err := newHarvester(fetcher, nil, HarvestOptions{PageDelay: 40 * time.Millisecond}).Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestHarvest_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &scriptedFetcher{pages: map[string]*model.Page{"*": page("*")}}
	store := &memoryRunStore{}

	summary, err := newHarvester(fetcher, nil, HarvestOptions{PageDelay: time.Second}).
		WithRunStatus(store).
		Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusCancelled, summary.Status)
	assert.Empty(t, fetcher.requested)
	require.Len(t, store.saved, 1, "summary is recorded even after cancellation")
}

func TestHarvest_Metrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pages := testutil.ToFloat64(pagesFetchedCounter)
	docs := testutil.ToFloat64(docsCounter)
	written := testutil.ToFloat64(writtenCounter)
	decodeFailures := testutil.ToFloat64(recordFailureCounter.WithLabelValues(stageDecode))

	fetcher := &scriptedFetcher{pages: map[string]*model.Page{
		"*": page("a", sectorDoc(t, "A", "15132", "1"), model.Doc{IATIIdentifier: "BAD", IATIJSON: "{"}),
		"a": page("a", sectorDoc(t, "B", "15132", "2")),
	}}
	_, err := newHarvester(fetcher, []ActivitySink{&recordingSink{}}, HarvestOptions{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(pagesFetchedCounter)-pages)
	assert.Equal(t, 3.0, testutil.ToFloat64(docsCounter)-docs)
	assert.Equal(t, 1.0, testutil.ToFloat64(writtenCounter)-written)
	assert.Equal(t, 1.0, testutil.ToFloat64(recordFailureCounter.WithLabelValues(stageDecode))-decodeFailures)
	assert.Positive(t, testutil.ToFloat64(lastRunGauge.WithLabelValues(string(model.RunStatusCompleted))))
}
