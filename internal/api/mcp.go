package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/prepd-app/prepd/internal/rag"
	"github.com/prepd-app/prepd/internal/vectorstore"
)

// MCPKnowledge abstracts the knowledge base for the MCP layer.
type MCPKnowledge interface {
	RetrieveSimilarQuestions(ctx context.Context, query string, topK int) ([]vectorstore.SearchResult, error)
	RetrieveBestAnswers(ctx context.Context, query string, topK int) ([]vectorstore.SearchResult, error)
	RetrieveSimilarJD(ctx context.Context, query string, topK int) ([]vectorstore.SearchResult, error)
	EmbedAndStore(ctx context.Context, contentType, content, metadata string) (int64, error)
	Status() (rag.Status, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Knowledge MCPKnowledge
}

// NewMCPServer creates an MCP server exposing the interview knowledge base.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"prepd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("prepd: local interview practice knowledge base for questions, reference answers, and job descriptions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Semantically search the interview knowledge base and return relevant entries."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Entry type to search: question, answer, or jd (default question)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("add_knowledge",
			mcp.WithDescription("Store an entry into the interview knowledge base for later retrieval."),
			mcp.WithString("content", mcp.Description("The text content to store"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Entry type: question, answer, or jd"), mcp.Required()),
			mcp.WithString("metadata", mcp.Description("Optional free-form metadata")),
		),
		mcpAddKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("knowledge_status",
			mcp.WithDescription("Report knowledge base size per entry type and the engine state."),
		),
		mcpKnowledgeStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"knowledge://status",
			"Knowledge Base Status",
			mcp.WithResourceDescription("Knowledge base counts and engine state as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		var results []vectorstore.SearchResult
		switch entryType := req.GetString("type", rag.TypeQuestion); entryType {
		case rag.TypeQuestion:
			results, err = deps.Knowledge.RetrieveSimilarQuestions(ctx, query, limit)
		case rag.TypeAnswer:
			results, err = deps.Knowledge.RetrieveBestAnswers(ctx, query, limit)
		case rag.TypeJD:
			results, err = deps.Knowledge.RetrieveSimilarJD(ctx, query, limit)
		default:
			return mcpError(fmt.Sprintf("unknown type %q", entryType)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		entryType, err := req.RequireString("type")
		if err != nil {
			return mcpError("type is required"), nil
		}
		metadata := req.GetString("metadata", "")

		id, err := deps.Knowledge.EmbedAndStore(ctx, entryType, content, metadata)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to store: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored knowledge entry %d (searchable after next rebuild)", id)), nil
	}
}

func mcpKnowledgeStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := deps.Knowledge.Status()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read status: %v", err)), nil
		}

		b, err := json.Marshal(status)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		status, err := deps.Knowledge.Status()
		if err != nil {
			return nil, fmt.Errorf("failed to read status: %w", err)
		}

		b, err := json.Marshal(status)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
