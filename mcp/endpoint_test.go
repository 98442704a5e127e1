package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/secsearch"
)

type stubService struct {
	secsearch.Service
	lastQuery secsearch.Query
}

func (s *stubService) Search(ctx context.Context, q secsearch.Query) ([]secsearch.SearchResult, error) {
	s.lastQuery = q

	if q.Text == "" {
		return nil, secsearch.ErrEmptyQuery
	}

	return []secsearch.SearchResult{{
		ChunkID:     "0000320193-24-000123_0007",
		Text:        "Our liquidity remains strong.",
		Similarity:  0.82,
		FilingKey:   "0000320193-24-000123",
		Ticker:      "AAPL",
		FormType:    "10-K",
		SectionPath: "PART II > Item 7. Management's Discussion",
	}}, nil
}

func (s *stubService) Status(ctx context.Context) (secsearch.Status, error) {
	return secsearch.Status{FilingCount: 1, MaxFilings: 20, ChunkCount: 42}, nil
}

func TestUnmarshalInitializeRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 1,
	  "method": "initialize",
	  "params": {
	    "protocolVersion": "2024-11-05",
	    "capabilities": {
	      "roots": {
	        "listChanged": true
	      },
	      "sampling": {}
	    },
	    "clientInfo": {
	      "name": "ExampleClient",
	      "version": "1.0.0"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	var params mcp.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.JSONRPC_VERSION, req.JSONRPC)
	assert.Equal(mcp.NewRequestId(int64(1)), req.ID)
	assert.Equal(mcp.MethodInitialize, req.Method)
	assert.Equal("2024-11-05", params.ProtocolVersion)

	resp := InitializeEndpoint(nil)(context.Background(), req)

	result, ok := resp.(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	initResult, ok := result.Result.(*mcp.InitializeResult)
	if assert.True(ok) {
		assert.Equal("secsearch", initResult.ServerInfo.Name)
		assert.Equal("2024-11-05", initResult.ProtocolVersion)
	}
}

func TestListTools(t *testing.T) {
	assert := assert.New(t)

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(2)),
		Method:  mcp.MethodToolsList,
	}

	resp := ListToolsEndpoint(nil)(context.Background(), req)

	bs, err := json.Marshal(resp)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Contains(string(bs), `"name":"search_filings"`)
	assert.Contains(string(bs), `"name":"list_filings"`)
	assert.Contains(string(bs), `"name":"index_status"`)
}

func TestCallSearchTool(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 3,
	  "method": "tools/call",
	  "params": {
	    "name": "search_filings",
	    "arguments": {
	      "query": "How much cash does Apple hold?",
	      "top_k": 3,
	      "ticker": "AAPL"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	svc := new(stubService)

	resp := CallToolEndpoint(svc)(context.Background(), req)

	result, ok := resp.(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	assert.Equal("How much cash does Apple hold?", svc.lastQuery.Text)
	assert.Equal(3, svc.lastQuery.TopK)
	assert.Equal("AAPL", svc.lastQuery.Ticker)

	toolResult, ok := result.Result.(*mcp.CallToolResult)
	if !assert.True(ok) {
		return
	}

	assert.False(toolResult.IsError)

	if assert.Len(toolResult.Content, 1) {
		text, ok := toolResult.Content[0].(mcp.TextContent)
		if assert.True(ok) {
			assert.Contains(text.Text, "0000320193-24-000123_0007")
		}
	}
}

func TestCallToolErrors(t *testing.T) {
	assert := assert.New(t)

	svc := new(stubService)
	endpoint := CallToolEndpoint(svc)

	// a failing tool call is a successful response flagged as an error
	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(4)),
		Method:  mcp.MethodToolsCall,
		Params:  json.RawMessage(`{"name":"search_filings","arguments":{"query":""}}`),
	}

	result, ok := endpoint(context.Background(), req).(mcp.JSONRPCResponse)
	if assert.True(ok) {
		toolResult, ok := result.Result.(*mcp.CallToolResult)
		if assert.True(ok) {
			assert.True(toolResult.IsError)
		}
	}

	req.Params = json.RawMessage(`{"name":"delete_everything"}`)

	rpcErr, ok := endpoint(context.Background(), req).(mcp.JSONRPCError)
	if assert.True(ok) {
		assert.Equal(mcp.INVALID_PARAMS, rpcErr.Error.Code)
	}
}

func TestStdioMCPServer(t *testing.T) {
	assert := assert.New(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"index_status"}}`,
	}, "\n"))

	var out bytes.Buffer

	s := NewStdioMCPServer(in, &out)
	for method, endpoint := range MakeEndpoints(new(stubService)) {
		assert.NoError(s.AddEndpoint(method, endpoint))
	}

	assert.Error(s.AddEndpoint(mcp.MethodPing, PingEndpoint(nil)))

	err := s.Listen(context.Background())
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !assert.Len(lines, 3) {
		return
	}

	assert.Contains(lines[0], `"id":1`)
	assert.Contains(lines[1], `"code":-32601`)
	assert.Contains(lines[2], `\"chunk_count\":42`)
}
