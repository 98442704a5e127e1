package nats

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/secsearch"
)

const (
	// ingestion fetches and embeds a whole filing
	IngestTimeout  = 10 * time.Minute
	RequestTimeout = 30 * time.Second
)

func MakeEndpoints(nc *nats.Conn, prefix string) *secsearch.EndpointSet {
	return &secsearch.EndpointSet{
		Ingest:       IngestEndpoint(nc, prefix+"."+TopicIngest),
		Search:       SearchEndpoint(nc, prefix+"."+TopicSearch),
		ListFilings:  ListFilingsEndpoint(nc, prefix+"."+TopicListFilings),
		GetFiling:    GetFilingEndpoint(nc, prefix+"."+TopicGetFiling),
		RemoveFiling: RemoveFilingEndpoint(nc, prefix+"."+TopicRemoveFiling),
		Status:       StatusEndpoint(nc, prefix+"."+TopicStatus),
	}
}

// requestMsg uses the context deadline when there is one and the fallback
// timeout otherwise.
func requestMsg(ctx context.Context, nc *nats.Conn, topic string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	var (
		msg *nats.Msg
		err error
	)

	if _, ok := ctx.Deadline(); ok {
		msg, err = nc.RequestWithContext(ctx, topic, data)
	} else {
		msg, err = nc.Request(topic, data, timeout)
	}

	if err != nil {
		return nil, err
	}

	if err := Error(msg); err != nil {
		return nil, err
	}

	return msg, nil
}

func IngestEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(secsearch.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := requestMsg(ctx, nc, topic, data, IngestTimeout)
		if err != nil {
			return nil, err
		}

		var result secsearch.IngestResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func SearchEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(secsearch.SearchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := requestMsg(ctx, nc, topic, data, RequestTimeout)
		if err != nil {
			return nil, err
		}

		var results []secsearch.SearchResult
		if err := json.Unmarshal(resp.Data, &results); err != nil {
			return nil, err
		}

		return results, nil
	}
}

func ListFilingsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(secsearch.ListFilingsRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := requestMsg(ctx, nc, topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var filings []secsearch.Filing
		if err := json.Unmarshal(resp.Data, &filings); err != nil {
			return nil, err
		}

		return filings, nil
	}
}

func GetFilingEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		filingKey, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := requestMsg(ctx, nc, topic, []byte(filingKey), nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var filing secsearch.Filing
		if err := json.Unmarshal(resp.Data, &filing); err != nil {
			return nil, err
		}

		return filing, nil
	}
}

func RemoveFilingEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		filingKey, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := requestMsg(ctx, nc, topic, []byte(filingKey), RequestTimeout)
		if err != nil {
			return nil, err
		}

		var result secsearch.RemoveResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func StatusEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := requestMsg(ctx, nc, topic, nil, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var status secsearch.Status
		if err := json.Unmarshal(resp.Data, &status); err != nil {
			return nil, err
		}

		return status, nil
	}
}

// Error decodes the error headers set by micro.Request.Error.
func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	status, err := strconv.Atoi(code)
	if err != nil {
		return errors.New(code + ":" + description)
	}

	return secsearch.ErrorFromStatus(status, description)
}
