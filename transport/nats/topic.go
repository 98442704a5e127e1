package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/secsearch"
)

const (
	TopicIngest       = "ingest"
	TopicSearch       = "search"
	TopicListFilings  = "list_filings"
	TopicGetFiling    = "get_filing"
	TopicRemoveFiling = "remove_filing"
	TopicStatus       = "status"
)

func AddEndpoints(group micro.Group, endpoints *secsearch.EndpointSet) error {
	handlers := []struct {
		name    string
		handler micro.HandlerFunc
	}{
		{TopicIngest, IngestHandler(endpoints.Ingest)},
		{TopicSearch, SearchHandler(endpoints.Search)},
		{TopicListFilings, ListFilingsHandler(endpoints.ListFilings)},
		{TopicGetFiling, GetFilingHandler(endpoints.GetFiling)},
		{TopicRemoveFiling, RemoveFilingHandler(endpoints.RemoveFiling)},
		{TopicStatus, StatusHandler(endpoints.Status)},
	}

	for _, h := range handlers {
		if err := group.AddEndpoint(h.name, h.handler); err != nil {
			return err
		}
	}

	return nil
}
