package secsearch

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/registry"
	"github.com/flarexio/secsearch/source"
	"github.com/flarexio/secsearch/vector"
)

// Service defines the core logic of SECSearch.
type Service interface {

	// Close releases the registry.
	Close() error

	// Ingest fetches, chunks, embeds and registers one filing: the one
	// named by the request's filing key, or else the latest filing of the
	// form type matching its year and date range.
	Ingest(ctx context.Context, req IngestRequest) (IngestResult, error)

	// Search runs a semantic query over the registered filings.
	Search(ctx context.Context, q Query) ([]SearchResult, error)

	// ListFilings returns registered filings, oldest first.
	ListFilings(ctx context.Context, filter ListFilingsRequest) ([]Filing, error)

	GetFiling(ctx context.Context, filingKey string) (Filing, error)

	// RemoveFiling deletes a filing and its chunks. Removing an unknown
	// filing is not an error.
	RemoveFiling(ctx context.Context, filingKey string) (RemoveResult, error)

	// Status summarises registry and index contents.
	Status(ctx context.Context) (Status, error)
}

type ServiceMiddleware func(Service) Service

type ServiceOption func(*service)

func WithProgress(fn ProgressFunc) ServiceOption {
	return func(svc *service) {
		svc.orchestrator.OnProgress(fn)
	}
}

func NewService(ctx context.Context, cfg Config, src source.Source, embedder embedding.Embedder, db vector.VectorDB, reg registry.Registry, opts ...ServiceOption) (Service, error) {
	log := zap.L().With(
		zap.String("service", "secsearch"),
	)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if embedder == nil || db == nil || reg == nil {
		return nil, fmt.Errorf("%w: embedder, vector database and registry are required", ErrInvalidConfig)
	}

	index, err := db.Index(cfg.Vector.Collection)
	if err != nil {
		return nil, err
	}

	orchestrator, err := NewOrchestrator(cfg, src, embedder, index, reg)
	if err != nil {
		return nil, err
	}

	svc := &service{
		cfg:          cfg,
		log:          log,
		index:        index,
		registry:     reg,
		orchestrator: orchestrator,
		search:       NewSearchEngine(cfg.Search, embedder, index, reg),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if src == nil {
		log.Warn("no filing source configured, ingestion disabled")
	}

	// inference runs in the embedding server, the device is informational
	log.Info("embedding configured",
		zap.String("provider", string(cfg.Embedding.Provider)),
		zap.String("model", embedder.Model()),
		zap.String("device", string(cfg.Embedding.Device)),
		zap.Int("dimension", embedder.Dimension()),
	)

	return svc, nil
}

type service struct {
	cfg          Config
	log          *zap.Logger
	index        vector.Index
	registry     registry.Registry
	orchestrator *Orchestrator
	search       *SearchEngine
}

func (svc *service) Close() error {
	return svc.registry.Close()
}

func (svc *service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	return svc.orchestrator.Ingest(ctx, req)
}

func (svc *service) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	return svc.search.Search(ctx, q)
}

func (svc *service) ListFilings(ctx context.Context, filter ListFilingsRequest) ([]Filing, error) {
	return svc.registry.List(ctx, filter.Normalize())
}

func (svc *service) GetFiling(ctx context.Context, filingKey string) (Filing, error) {
	return svc.registry.Get(ctx, filingKey)
}

// RemoveFiling drops the registry row before the vectors. An interrupted
// removal leaves only orphan vectors, which search ignores and a retry
// cleans up.
func (svc *service) RemoveFiling(ctx context.Context, filingKey string) (RemoveResult, error) {
	log := svc.log.With(
		zap.String("action", "remove_filing"),
		zap.String("filing_key", filingKey),
	)

	unlock := svc.orchestrator.locks.Lock(filingKey)
	defer unlock()

	removed, err := svc.registry.Remove(ctx, filingKey)
	if err != nil {
		return RemoveResult{}, err
	}

	n, err := svc.index.DeleteByDocument(ctx, filingKey)
	if err != nil {
		return RemoveResult{FilingKey: filingKey, Removed: removed}, err
	}

	if !removed && n > 0 {
		log.Warn("removed orphan vectors", zap.Int("deleted", n))
	}

	return RemoveResult{
		FilingKey:     filingKey,
		Removed:       removed,
		ChunksDeleted: n,
	}, nil
}

func (svc *service) Status(ctx context.Context) (Status, error) {
	filings, err := svc.registry.List(ctx, registry.Filter{})
	if err != nil {
		return Status{}, err
	}

	chunks, err := svc.index.Count(ctx)
	if err != nil {
		return Status{}, err
	}

	seen := make(map[string]bool)
	tickers := make([]string, 0)
	forms := make(map[string]int)

	for _, f := range filings {
		if !seen[f.Ticker] {
			seen[f.Ticker] = true
			tickers = append(tickers, f.Ticker)
		}

		forms[f.FormType]++
	}

	sort.Strings(tickers)

	return Status{
		FilingCount:     len(filings),
		MaxFilings:      svc.registry.MaxFilings(),
		ChunkCount:      chunks,
		DistinctTickers: tickers,
		FormBreakdown:   forms,
	}, nil
}
