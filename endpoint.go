package secsearch

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Ingest       endpoint.Endpoint
	Search       endpoint.Endpoint
	ListFilings  endpoint.Endpoint
	GetFiling    endpoint.Endpoint
	RemoveFiling endpoint.Endpoint
	Status       endpoint.Endpoint
}

func MakeEndpoints(svc Service) *EndpointSet {
	return &EndpointSet{
		Ingest:       IngestEndpoint(svc),
		Search:       SearchEndpoint(svc),
		ListFilings:  ListFilingsEndpoint(svc),
		GetFiling:    GetFilingEndpoint(svc),
		RemoveFiling: RemoveFilingEndpoint(svc),
		Status:       StatusEndpoint(svc),
	}
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ingest(ctx, req)
	}
}

type SearchRequest = Query

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Search(ctx, req)
	}
}

func ListFilingsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ListFilingsRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.ListFilings(ctx, req)
	}
}

func GetFilingEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		filingKey, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.GetFiling(ctx, filingKey)
	}
}

func RemoveFilingEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		filingKey, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.RemoveFiling(ctx, filingKey)
	}
}

func StatusEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Status(ctx)
	}
}
