package secsearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/secsearch/chunk"
	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/segment"
	"github.com/flarexio/secsearch/source"
	"github.com/flarexio/secsearch/vector"
)

// ProgressFunc is notified of every state an ingestion reaches.
type ProgressFunc func(filingKey string, state State)

// Orchestrator drives a filing through fetch, segment, chunk, embed, index
// and register. Vectors are written before the registry row, so a filing
// is never registered without its chunks.
type Orchestrator struct {
	log      *zap.Logger
	source   source.Source
	chunker  *chunk.Chunker
	embedder embedding.Embedder
	index    vector.Index
	registry registry.Registry
	locks    *keyedMutex
	progress ProgressFunc
	now      func() time.Time
}

func NewOrchestrator(cfg Config, src source.Source, embedder embedding.Embedder, index vector.Index, reg registry.Registry) (*Orchestrator, error) {
	chunker, err := chunk.NewChunker(cfg.Chunking.TokenLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Orchestrator{
		log:      zap.L().With(zap.String("component", "orchestrator")),
		source:   src,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		registry: reg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}, nil
}

func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.progress = fn
}

func (o *Orchestrator) reach(log *zap.Logger, key string, state State) {
	log.Debug("state reached", zap.String("state", string(state)))

	if o.progress != nil {
		o.progress(key, state)
	}
}

func normalizeRequest(req IngestRequest) (source.Request, error) {
	ticker, err := NormalizeTicker(req.Ticker)
	if err != nil {
		return source.Request{}, err
	}

	form, err := ParseFormType(req.FormType)
	if err != nil {
		return source.Request{}, err
	}

	sreq := req.sourceRequest().Normalize()
	sreq.Ticker = ticker
	sreq.FormType = string(form)

	if err := sreq.Validate(); err != nil {
		return source.Request{}, err
	}

	return sreq, nil
}

// SelectFilings expands requests carrying a count, year or date range into
// one request per matching filing, newest first. Other requests pass
// through unchanged.
func SelectFilings(ctx context.Context, src source.Source, reqs []IngestRequest) ([]IngestRequest, error) {
	selected := make([]IngestRequest, 0, len(reqs))

	for _, req := range reqs {
		sreq, err := normalizeRequest(req)
		if err != nil {
			return nil, err
		}

		if sreq.FilingKey != "" || !sreq.Selective() {
			selected = append(selected, req)
			continue
		}

		if src == nil {
			return nil, ErrSourceNotSet
		}

		filings, err := src.List(ctx, sreq)
		if err != nil {
			if !errors.Is(err, ErrFetch) && !errors.Is(err, ErrInvalidSelection) {
				err = fmt.Errorf("%w: %w", ErrFetch, err)
			}

			return nil, err
		}

		for _, f := range filings {
			selected = append(selected, IngestRequest{
				Ticker:    sreq.Ticker,
				FormType:  sreq.FormType,
				FilingKey: f.FilingKey,
			})
		}
	}

	return selected, nil
}

// Ingest fetches and ingests one filing: the one named by FilingKey, or
// the latest filing matching the request.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	sreq, err := normalizeRequest(req)
	if err != nil {
		return IngestResult{}, err
	}

	if o.source == nil {
		return IngestResult{}, ErrSourceNotSet
	}

	log := o.log.With(
		zap.String("action", "ingest"),
		zap.String("ticker", sreq.Ticker),
		zap.String("form_type", sreq.FormType),
	)

	if sreq.FilingKey == "" && sreq.Selective() {
		sreq.Count = 1

		filings, err := o.source.List(ctx, sreq)
		if err == nil && len(filings) == 0 {
			err = fmt.Errorf("%w: %w: %s %s", ErrFetch, source.ErrNotFound, sreq.Ticker, sreq.FormType)
		}

		if err != nil {
			log.Error(err.Error())

			if !errors.Is(err, ErrFetch) {
				err = fmt.Errorf("%w: %w", ErrFetch, err)
			}

			return IngestResult{}, &IngestError{State: StatePending, Err: err}
		}

		sreq.FilingKey = filings[0].FilingKey
	}

	doc, err := o.source.Fetch(ctx, sreq)
	if err != nil {
		log.Error(err.Error())

		if !errors.Is(err, ErrFetch) {
			err = fmt.Errorf("%w: %w", ErrFetch, err)
		}

		return IngestResult{}, &IngestError{State: StatePending, Err: err}
	}

	return o.IngestDocument(ctx, doc)
}

// IngestDocument ingests an already fetched document.
func (o *Orchestrator) IngestDocument(ctx context.Context, doc source.Document) (IngestResult, error) {
	start := o.now()

	if doc.FilingKey == "" {
		return IngestResult{}, fmt.Errorf("%w: missing filing key", ErrInvalidDocument)
	}

	ticker, err := NormalizeTicker(doc.Ticker)
	if err != nil {
		return IngestResult{}, err
	}

	form, err := ParseFormType(doc.FormType)
	if err != nil {
		return IngestResult{}, err
	}

	doc.Ticker = ticker
	doc.FormType = string(form)

	key := doc.FilingKey

	log := o.log.With(
		zap.String("action", "ingest_document"),
		zap.String("filing_key", key),
		zap.String("ticker", doc.Ticker),
		zap.String("form_type", doc.FormType),
	)

	unlock := o.locks.Lock(key)
	defer unlock()

	fail := func(state State, err error) (IngestResult, error) {
		log.Error(err.Error(), zap.String("state", string(state)))
		return IngestResult{}, &IngestError{FilingKey: key, State: state, Err: err}
	}

	o.reach(log, key, StateFetched)

	exists, err := o.registry.Exists(ctx, key)
	if err != nil {
		return fail(StateFetched, err)
	}

	if exists {
		return fail(StateFetched, fmt.Errorf("%w: %s", ErrDuplicateFiling, key))
	}

	same, err := o.registry.List(ctx, registry.Filter{Ticker: doc.Ticker, FormType: doc.FormType})
	if err != nil {
		return fail(StateFetched, err)
	}

	for _, r := range same {
		if r.FilingDate == doc.FilingDate {
			return fail(StateFetched, fmt.Errorf("%w: %s %s %s is registered as %s",
				ErrDuplicateFiling, doc.Ticker, doc.FormType, doc.FilingDate, r.FilingKey))
		}
	}

	count, err := o.registry.Count(ctx, registry.Filter{})
	if err != nil {
		return fail(StateFetched, err)
	}

	if limit := o.registry.MaxFilings(); count >= limit {
		return fail(StateFetched, &CapacityError{Current: count, Max: limit})
	}

	sections, err := segment.Segment(key, doc.Content)
	if err != nil {
		return fail(StateFetched, err)
	}

	o.reach(log, key, StateSegmented)

	chunks, err := o.chunker.Chunk(sections)
	if err != nil {
		return fail(StateSegmented, fmt.Errorf("%w: %w", ErrParse, err))
	}

	o.reach(log, key, StateChunked)

	if err := ctx.Err(); err != nil {
		return fail(StateChunked, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return fail(StateChunked, err)
	}

	o.reach(log, key, StateEmbedded)

	if err := ctx.Err(); err != nil {
		return fail(StateEmbedded, err)
	}

	// Clear leftovers of an earlier failed attempt. No registry row exists
	// for the key and the lock is held, so any vectors found are orphans.
	if _, err := o.index.DeleteByDocument(ctx, key); err != nil {
		return fail(StateEmbedded, err)
	}

	items := make([]vector.Item, len(chunks))
	for i, c := range chunks {
		items[i] = vector.Item{
			ID:      c.ID,
			Vector:  vectors[i],
			Content: c.Text,
			Attributes: map[string]string{
				vector.AttrDocumentID:  key,
				vector.AttrTicker:      doc.Ticker,
				vector.AttrFormType:    doc.FormType,
				vector.AttrFilingDate:  doc.FilingDate,
				vector.AttrSectionPath: c.SectionPath,
				vector.AttrContentType: string(c.ContentType),
				vector.AttrChunkIndex:  strconv.Itoa(c.Index),
				vector.AttrTokenCount:  strconv.Itoa(c.TokenCount),
			},
		}
	}

	if err := o.index.Upsert(ctx, items); err != nil {
		o.rollback(ctx, log, key)
		return fail(StateEmbedded, err)
	}

	o.reach(log, key, StateIndexed)

	record := registry.Record{
		FilingKey:  key,
		Ticker:     doc.Ticker,
		FormType:   doc.FormType,
		FilingDate: doc.FilingDate,
		ChunkCount: len(chunks),
		IngestedAt: o.now(),
	}

	if err := o.registry.Register(ctx, record); err != nil {
		o.rollback(ctx, log, key)
		return fail(StateIndexed, err)
	}

	o.reach(log, key, StateRegistered)

	return IngestResult{
		FilingKey:  key,
		Ticker:     doc.Ticker,
		FormType:   doc.FormType,
		FilingDate: doc.FilingDate,
		Sections:   len(sections),
		ChunkCount: len(chunks),
		Duration:   Duration(o.now().Sub(start)),
	}, nil
}

// rollback removes the vectors written for key. Its own failure is logged
// and never replaces the error that caused it.
func (o *Orchestrator) rollback(ctx context.Context, log *zap.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	n, err := o.index.DeleteByDocument(ctx, key)
	if err != nil {
		log.Error("rollback failed", zap.Error(err))
		return
	}

	log.Warn("rolled back vectors", zap.Int("deleted", n))
}

// keyedMutex serialises work per key while letting different keys proceed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = new(keyedLock)
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type BatchOutcome struct {
	Request IngestRequest `json:"request"`
	Result  *IngestResult `json:"result,omitempty"`
	Skipped bool          `json:"skipped,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// IngestBatch ingests the requests one after another. Duplicates are
// skipped and the batch stops at the first capacity error.
func IngestBatch(ctx context.Context, svc Service, reqs []IngestRequest) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(reqs))

	for _, req := range reqs {
		if ctx.Err() != nil {
			break
		}

		result, err := svc.Ingest(ctx, req)

		outcome := BatchOutcome{Request: req}
		switch {
		case err == nil:
			outcome.Result = &result

		case errors.Is(err, ErrDuplicateFiling):
			outcome.Skipped = true
			outcome.Error = err.Error()

		default:
			outcome.Error = err.Error()
		}

		outcomes = append(outcomes, outcome)

		if errors.Is(err, ErrCapacityExceeded) {
			break
		}
	}

	return outcomes
}
