package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"querymind/app/service/pipeline"
	"querymind/app/service/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	serverName    = "querymind"
	serverVersion = "1.0.0"
)

// Pipeline is the part of the chat pipeline exposed as MCP tools.
type Pipeline interface {
	ProcessMessage(ctx context.Context, sessionID, query string) (*pipeline.Result, error)
	Messages(ctx context.Context, sessionID string) ([]session.Message, error)
	Summary(ctx context.Context, sessionID string) (*session.Summary, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Stats() pipeline.UsageStats
}

type tool struct {
	definition mcp.Tool
	handle     server.ToolHandlerFunc
}

// Server exposes the pipeline to MCP clients over stdio.
type Server struct {
	mcp      *server.MCPServer
	pipeline Pipeline
	in       io.Reader
	out      io.Writer
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(do.MustInvoke[*pipeline.Service](di), os.Stdin, os.Stdout), nil
}

func NewServer(p Pipeline, in io.Reader, out io.Writer) *Server {
	s := &Server{
		pipeline: p,
		in:       in,
		out:      out,
	}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, t := range s.tools() {
		s.mcp.AddTool(t.definition, t.handle)
	}

	return s
}

// Run serves stdio until ctx is done or the input is closed.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("MCP server listening on stdio")

	err := server.NewStdioServer(s.mcp).Listen(ctx, s.in, s.out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (s *Server) tools() []tool {
	return []tool{
		{
			definition: mcp.NewTool("chat",
				mcp.WithDescription("Send a user message to a session. Returns the response together with the query analysis, session memory and pipeline metadata."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
				mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
			),
			handle: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sessionID, err := request.RequireString("session_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				message, err := request.RequireString("message")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				result, err := s.pipeline.ProcessMessage(ctx, sessionID, message)
				if err != nil {
					return toolError(err), nil
				}

				return jsonResult(result)
			},
		},
		{
			definition: mcp.NewTool("session_messages",
				mcp.WithDescription("List the stored messages of a session in order."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
			),
			handle: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sessionID, err := request.RequireString("session_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				messages, err := s.pipeline.Messages(ctx, sessionID)
				if err != nil {
					return toolError(err), nil
				}
				if messages == nil {
					messages = []session.Message{}
				}

				return jsonResult(messages)
			},
		},
		{
			definition: mcp.NewTool("session_summary",
				mcp.WithDescription("Get the structured memory summary of a session."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
			),
			handle: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sessionID, err := request.RequireString("session_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				summary, err := s.pipeline.Summary(ctx, sessionID)
				if err != nil {
					return toolError(err), nil
				}
				if summary == nil {
					return mcp.NewToolResultText("No summary available for this session"), nil
				}

				return jsonResult(summary)
			},
		},
		{
			definition: mcp.NewTool("delete_session",
				mcp.WithDescription("Delete the messages and summary of a session."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session id")),
			),
			handle: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				sessionID, err := request.RequireString("session_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}

				if err = s.pipeline.DeleteSession(ctx, sessionID); err != nil {
					return toolError(err), nil
				}

				return mcp.NewToolResultText("ok"), nil
			},
		},
		{
			definition: mcp.NewTool("stats",
				mcp.WithDescription("Get LLM usage statistics across all sessions."),
			),
			handle: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return jsonResult(s.pipeline.Stats())
			},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	slog.Warn("MCP tool call failed", "error", err)

	return mcp.NewToolResultError(err.Error())
}
