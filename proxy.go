package secsearch

import (
	"context"
	"errors"
)

func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return nil
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	resp, err := mw.endpoints.Ingest(ctx, req)
	if err != nil {
		return IngestResult{}, err
	}

	result, ok := resp.(IngestResult)
	if !ok {
		return IngestResult{}, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	resp, err := mw.endpoints.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	results, ok := resp.([]SearchResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return results, nil
}

func (mw *proxyMiddleware) ListFilings(ctx context.Context, filter ListFilingsRequest) ([]Filing, error) {
	resp, err := mw.endpoints.ListFilings(ctx, filter)
	if err != nil {
		return nil, err
	}

	filings, ok := resp.([]Filing)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return filings, nil
}

func (mw *proxyMiddleware) GetFiling(ctx context.Context, filingKey string) (Filing, error) {
	resp, err := mw.endpoints.GetFiling(ctx, filingKey)
	if err != nil {
		return Filing{}, err
	}

	filing, ok := resp.(Filing)
	if !ok {
		return Filing{}, errors.New("invalid response type")
	}

	return filing, nil
}

func (mw *proxyMiddleware) RemoveFiling(ctx context.Context, filingKey string) (RemoveResult, error) {
	resp, err := mw.endpoints.RemoveFiling(ctx, filingKey)
	if err != nil {
		return RemoveResult{}, err
	}

	result, ok := resp.(RemoveResult)
	if !ok {
		return RemoveResult{}, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Status(ctx context.Context) (Status, error) {
	resp, err := mw.endpoints.Status(ctx, nil)
	if err != nil {
		return Status{}, err
	}

	status, ok := resp.(Status)
	if !ok {
		return Status{}, errors.New("invalid response type")
	}

	return status, nil
}
