// Package mcpadapter exposes a read/invoke subset of the workbench as
// MCP tools over stdio, so agent frontends can drive briefs without
// the HTTP surface.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
	"github.com/avolkov/intel-workbench/internal/export/markdown"
)

type Server struct {
	mcp *server.MCPServer

	auth     ports.Authenticator
	tasks    ports.TaskRegistry
	brief    ports.BriefSynthesizer
	evidence ports.EvidenceService
	token    string
}

// New builds the tool server. The token is resolved per call, so a
// session expiring mid-run surfaces as a tool error instead of a
// stale identity.
func New(
	auth ports.Authenticator,
	tasks ports.TaskRegistry,
	brief ports.BriefSynthesizer,
	evidence ports.EvidenceService,
	token string,
) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			"intel-workbench",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
		auth:     auth,
		tasks:    tasks,
		brief:    brief,
		evidence: evidence,
		token:    token,
	}

	s.mcp.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List the caller's tasks with title and last message preview."),
		),
		s.listTasks,
	)
	s.mcp.AddTool(
		mcp.NewTool("invoke_brief",
			mcp.WithDescription("Run one synthesizer turn against a task's intelligence brief."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier.")),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The question to fold into the brief.")),
		),
		s.invokeBrief,
	)
	s.mcp.AddTool(
		mcp.NewTool("export_report_markdown",
			mcp.WithDescription("Render a task's intelligence brief as Markdown."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier.")),
		),
		s.exportMarkdown,
	)
	s.mcp.AddTool(
		mcp.NewTool("list_evidence",
			mcp.WithDescription("List uploaded evidence with ingestion status."),
		),
		s.listEvidence,
	)

	return s
}

// ServeStdio blocks until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) caller(ctx context.Context) (*domain.User, error) {
	user, err := s.auth.Resolve(ctx, s.token)
	if err != nil {
		return nil, fmt.Errorf("resolve mcp token: %w", err)
	}
	return user, nil
}

func (s *Server) listTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summaries, err := s.tasks.List(ctx, user.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summaries)
}

func (s *Server) invokeBrief(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	turn, err := s.brief.Invoke(ctx, user.ID, taskID, prompt)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(turn)
}

func (s *Server) exportMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task, err := s.tasks.Get(ctx, user.ID, taskID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(markdown.Encode(task.Report)), nil
}

func (s *Server) listEvidence(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.evidence.List(ctx, user.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
