package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/secsearch"

	mcpE "github.com/flarexio/secsearch/mcp"
)

func AddRouters(r *gin.Engine, endpoints *secsearch.EndpointSet) {
	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/ingest", IngestHandler(endpoints.Ingest))
		api.POST("/search", SearchHandler(endpoints.Search))
		api.GET("/filings", ListFilingsHandler(endpoints.ListFilings))
		api.GET("/filings/:filing_key", GetFilingHandler(endpoints.GetFiling))
		api.DELETE("/filings/:filing_key", RemoveFilingHandler(endpoints.RemoveFiling))
		api.GET("/status", StatusHandler(endpoints.Status))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("", MCPStreamableHandler(endpoints))
	}
}
