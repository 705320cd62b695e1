package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds the services the MCP tools dispatch to. The same wired
// instances back both the HTTP and MCP surfaces.
type MCPDeps struct {
	Advisor   Advisor
	Gap       GapAnalyzer
	Recommend Recommender
	Profiles  ProfileAdapter
}

// NewMCPServer registers the advisor tools on an MCP server.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"skillsage",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("SkillSage — career advice grounded in a skills knowledge base: ask questions, analyze skill gaps, get career recommendations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_advisor",
			mcp.WithDescription("Ask the career advisor a question, grounded in the user's profile and the knowledge base."),
			mcp.WithString("email", mcp.Description("User key (email)"), mcp.Required()),
			mcp.WithString("query", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAskAdvisor(deps),
	)

	s.AddTool(
		mcp.NewTool("gap_analysis",
			mcp.WithDescription("Compute the user's skill gaps against their stated career goals."),
			mcp.WithString("email", mcp.Description("User key (email)"), mcp.Required()),
		),
		mcpGapAnalysis(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_careers",
			mcp.WithDescription("Recommend careers ranked by skill coverage."),
			mcp.WithString("email", mcp.Description("User key (email)"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of recommendations (default 3)")),
		),
		mcpRecommendCareers(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch a user's profile as JSON."),
			mcp.WithString("email", mcp.Description("User key (email)"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	return s
}

func mcpAskAdvisor(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		answer, err := deps.Advisor.Query(ctx, email, query, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("advisor failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpGapAnalysis(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}

		doc, err := deps.Gap.Analyze(email)
		if err != nil {
			return mcpError(fmt.Sprintf("gap analysis failed: %v", err)), nil
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal gap document: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecommendCareers(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}
		limit := req.GetInt("limit", 0)
		if limit < 0 {
			limit = 0
		}
		if limit > 20 {
			limit = 20
		}

		entries, err := deps.Recommend.Recommend(ctx, email, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendations failed: %v", err)), nil
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recommendations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}

		prof, err := deps.Profiles.Get(email)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		b, err := json.Marshal(prof)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
