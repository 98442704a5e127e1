package nats

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/secsearch"
)

func respondError(r micro.Request, err error) {
	code := strconv.Itoa(secsearch.StatusCode(err))
	r.Error(code, err.Error(), nil)
}

func IngestHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req secsearch.IngestRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		result, ok := resp.(secsearch.IngestResult)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&result)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req secsearch.SearchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		results, ok := resp.([]secsearch.SearchResult)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&results)
	}
}

func ListFilingsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req secsearch.ListFilingsRequest
		if data := r.Data(); len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				r.Error("400", err.Error(), nil)
				return
			}
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			respondError(r, err)
			return
		}

		filings, ok := resp.([]secsearch.Filing)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&filings)
	}
}

func GetFilingHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		filingKey := string(r.Data())
		if filingKey == "" {
			r.Error("400", "filing key is required", nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, filingKey)
		if err != nil {
			respondError(r, err)
			return
		}

		filing, ok := resp.(secsearch.Filing)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&filing)
	}
}

func RemoveFilingHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		filingKey := string(r.Data())
		if filingKey == "" {
			r.Error("400", "filing key is required", nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, filingKey)
		if err != nil {
			respondError(r, err)
			return
		}

		result, ok := resp.(secsearch.RemoveResult)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&result)
	}
}

func StatusHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			respondError(r, err)
			return
		}

		status, ok := resp.(secsearch.Status)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&status)
	}
}
