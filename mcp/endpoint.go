package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/secsearch"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `SECSearch answers questions about SEC 10-K and 10-Q filings that have been ingested into a local index.

Available tools:
- search_filings: semantic search over filing chunks, optionally filtered by ticker, form type or filing key
- list_filings: the filings currently registered
- ingest_filing: fetch and index a filing of a form type for a ticker, the latest one unless a filing key, year or date range picks another
- index_status: filing and chunk counts, tickers and form breakdown

Search results carry the section path of each chunk so answers can cite where in the filing the text came from.`

const (
	ToolSearchFilings = "search_filings"
	ToolListFilings   = "list_filings"
	ToolIngestFiling  = "ingest_filing"
	ToolIndexStatus   = "index_status"
)

// Tools lists the tools served by CallToolEndpoint.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolSearchFilings,
			mcp.WithDescription("Semantic search over ingested SEC filings"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language question"),
			),
			mcp.WithNumber("top_k",
				mcp.Description("Maximum number of results"),
			),
			mcp.WithString("ticker",
				mcp.Description("Restrict results to one company ticker"),
			),
			mcp.WithString("form_type",
				mcp.Description("Restrict results to one form type"),
				mcp.Enum(string(secsearch.FormType10K), string(secsearch.FormType10Q)),
			),
			mcp.WithString("filing_key",
				mcp.Description("Restrict results to one filing"),
			),
			mcp.WithNumber("min_similarity",
				mcp.Description("Drop results below this cosine similarity"),
			),
		),
		mcp.NewTool(ToolListFilings,
			mcp.WithDescription("List the registered filings, oldest first"),
			mcp.WithString("ticker",
				mcp.Description("Only filings of this ticker"),
			),
			mcp.WithString("form_type",
				mcp.Description("Only filings of this form type"),
				mcp.Enum(string(secsearch.FormType10K), string(secsearch.FormType10Q)),
			),
		),
		mcp.NewTool(ToolIngestFiling,
			mcp.WithDescription("Fetch, chunk, embed and register the latest filing of a form type"),
			mcp.WithString("ticker",
				mcp.Required(),
				mcp.Description("Company ticker, e.g. AAPL"),
			),
			mcp.WithString("form_type",
				mcp.Required(),
				mcp.Enum(string(secsearch.FormType10K), string(secsearch.FormType10Q)),
			),
			mcp.WithString("filing_key",
				mcp.Description("Accession number of a specific filing"),
			),
			mcp.WithNumber("year",
				mcp.Description("Latest filing from this year"),
			),
			mcp.WithString("start_date",
				mcp.Description("Latest filing on or after this date, YYYY-MM-DD"),
			),
			mcp.WithString("end_date",
				mcp.Description("Latest filing on or before this date, YYYY-MM-DD"),
			),
		),
		mcp.NewTool(ToolIndexStatus,
			mcp.WithDescription("Summarise the filings and chunks in the index"),
		),
	}
}

// MakeEndpoints maps every supported MCP method to its endpoint.
func MakeEndpoints(svc secsearch.Service) map[mcp.MCPMethod]MCPEndpoint {
	endpoints := make(map[mcp.MCPMethod]MCPEndpoint)
	endpoints[mcp.MethodInitialize] = InitializeEndpoint(svc)
	endpoints[mcp.MethodPing] = PingEndpoint(svc)
	endpoints[mcp.MethodToolsList] = ListToolsEndpoint(svc)
	endpoints[mcp.MethodToolsCall] = CallToolEndpoint(svc)
	return endpoints
}

func InitializeEndpoint(svc secsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "secsearch",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc secsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc secsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc secsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		var (
			value any
			err   error
		)

		switch params.Name {
		case ToolSearchFilings:
			var q secsearch.Query
			if err := decodeArguments(params.Arguments, &q); err != nil {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}

			value, err = svc.Search(ctx, q)

		case ToolListFilings:
			var filter secsearch.ListFilingsRequest
			if err := decodeArguments(params.Arguments, &filter); err != nil {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}

			value, err = svc.ListFilings(ctx, filter)

		case ToolIngestFiling:
			var ingest secsearch.IngestRequest
			if err := decodeArguments(params.Arguments, &ingest); err != nil {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}

			value, err = svc.Ingest(ctx, ingest)

		case ToolIndexStatus:
			value, err = svc.Status(ctx)

		default:
			return errorResponse(req.ID, mcp.INVALID_PARAMS, fmt.Sprintf("unknown tool: %s", params.Name))
		}

		// tool failures are reported to the model, not as protocol errors
		if err != nil {
			return mcp.JSONRPCResponse{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      req.ID,
				Result:  mcp.NewToolResultError(err.Error()),
			}
		}

		bs, err := json.Marshal(value)
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  mcp.NewToolResultText(string(bs)),
		}
	}
}

func decodeArguments(arguments any, v any) error {
	if arguments == nil {
		return nil
	}

	bs, err := json.Marshal(arguments)
	if err != nil {
		return err
	}

	return json.Unmarshal(bs, v)
}
