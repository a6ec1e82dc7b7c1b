package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mentor/internal/pipeline"
	"github.com/kalambet/mentor/internal/storage"
)

const recentRoadmapsLimit = 10

// NewMCPServer creates an MCP server exposing roadmap generation and
// management as tools, plus a resource with the latest roadmaps.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServiceName,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mentor generates structured learning roadmaps from a free-text learning goal and keeps them for later review."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_roadmap",
			mcp.WithDescription("Generate and store a learning roadmap for a goal such as \"I want to learn Go\". Returns the stored roadmap as JSON."),
			mcp.WithString("query", mcp.Description("The learning goal, 3 to 500 characters"), mcp.Required()),
		),
		mcpGenerateRoadmap(deps),
	)

	s.AddTool(
		mcp.NewTool("list_roadmaps",
			mcp.WithDescription("List stored roadmaps, newest first, without their content."),
			mcp.WithNumber("skip", mcp.Description("Number of roadmaps to skip (default 0)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of roadmaps to return (default 50)")),
		),
		mcpListRoadmaps(deps),
	)

	s.AddTool(
		mcp.NewTool("get_roadmap",
			mcp.WithDescription("Fetch one stored roadmap with its full markdown content and timeline."),
			mcp.WithNumber("id", mcp.Description("Roadmap id"), mcp.Required()),
		),
		mcpGetRoadmap(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_roadmap",
			mcp.WithDescription("Permanently delete a stored roadmap."),
			mcp.WithNumber("id", mcp.Description("Roadmap id"), mcp.Required()),
		),
		mcpDeleteRoadmap(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"roadmaps://recent",
			"Recent Roadmaps",
			mcp.WithResourceDescription("The 10 most recently generated roadmaps (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpGenerateRoadmap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		rm, err := deps.Generator.Generate(ctx, query)
		if err != nil {
			var ve *pipeline.ValidationError
			if errors.As(err, &ve) {
				return mcpError(ve.Error()), nil
			}
			return mcpError(fmt.Sprintf("Failed to generate roadmap: %v", err)), nil
		}
		return mcpJSON(rm)
	}
}

func mcpListRoadmaps(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skip := req.GetInt("skip", 0)
		if skip < 0 {
			skip = 0
		}
		limit := req.GetInt("limit", defaultListLimit)
		if limit <= 0 {
			limit = defaultListLimit
		}

		items, total, err := deps.Store.ListRoadmaps(skip, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list roadmaps: %v", err)), nil
		}
		return mcpJSON(roadmapList{Roadmaps: items, Total: total})
	}
}

func mcpGetRoadmap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		rm, err := deps.Store.GetRoadmap(int64(id))
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("Roadmap not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get roadmap: %v", err)), nil
		}
		return mcpJSON(rm)
	}
}

func mcpDeleteRoadmap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		err = deps.Store.DeleteRoadmap(int64(id))
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("Roadmap not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to delete roadmap: %v", err)), nil
		}
		deps.Metrics.RecordDeleted()
		return mcpText(fmt.Sprintf("Deleted roadmap %d", id)), nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, _, err := deps.Store.ListRoadmaps(0, recentRoadmapsLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent roadmaps: %w", err)
		}

		b, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal roadmaps: %w", err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
