package secsearch

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "secsearch"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.String("ticker", req.Ticker),
		zap.String("form_type", req.FormType),
	)

	if req.FilingKey != "" {
		log = log.With(zap.String("filing_key", req.FilingKey))
	}

	result, err := mw.next.Ingest(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return result, err
	}

	log.Info("filing ingested",
		zap.String("filing_key", result.FilingKey),
		zap.String("filing_date", result.FilingDate),
		zap.Int("chunks", result.ChunkCount),
		zap.Duration("took", result.Duration.Duration()),
	)
	return result, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", q.Text),
		zap.Int("top_k", q.TopK),
	)

	if q.Ticker != "" {
		log = log.With(zap.String("ticker", q.Ticker))
	}

	if q.FormType != "" {
		log = log.With(zap.String("form_type", q.FormType))
	}

	results, err := mw.next.Search(ctx, q)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("filings searched", zap.Int("results", len(results)))
	return results, nil
}

func (mw *loggingMiddleware) ListFilings(ctx context.Context, filter ListFilingsRequest) ([]Filing, error) {
	log := mw.log.With(
		zap.String("action", "list_filings"),
	)

	filings, err := mw.next.ListFilings(ctx, filter)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("filings listed", zap.Int("count", len(filings)))
	return filings, nil
}

func (mw *loggingMiddleware) GetFiling(ctx context.Context, filingKey string) (Filing, error) {
	log := mw.log.With(
		zap.String("action", "get_filing"),
		zap.String("filing_key", filingKey),
	)

	filing, err := mw.next.GetFiling(ctx, filingKey)
	if err != nil {
		log.Error(err.Error())
		return filing, err
	}

	log.Debug("filing found")
	return filing, nil
}

func (mw *loggingMiddleware) RemoveFiling(ctx context.Context, filingKey string) (RemoveResult, error) {
	log := mw.log.With(
		zap.String("action", "remove_filing"),
		zap.String("filing_key", filingKey),
	)

	result, err := mw.next.RemoveFiling(ctx, filingKey)
	if err != nil {
		log.Error(err.Error())
		return result, err
	}

	if !result.Removed {
		log.Info("filing not registered", zap.Int("chunks_deleted", result.ChunksDeleted))
		return result, nil
	}

	log.Info("filing removed", zap.Int("chunks_deleted", result.ChunksDeleted))
	return result, nil
}

func (mw *loggingMiddleware) Status(ctx context.Context) (Status, error) {
	log := mw.log.With(
		zap.String("action", "status"),
	)

	status, err := mw.next.Status(ctx)
	if err != nil {
		log.Error(err.Error())
		return status, err
	}

	log.Debug("status reported",
		zap.Int("filings", status.FilingCount),
		zap.Int("chunks", status.ChunkCount),
	)
	return status, nil
}
