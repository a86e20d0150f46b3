package mcptool

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"querymind/app/service/pipeline"
	"querymind/app/service/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	summary *session.Summary
	deleted []string
}

func (f *fakePipeline) ProcessMessage(_ context.Context, sessionID, query string) (*pipeline.Result, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}
	return &pipeline.Result{Response: "echo: " + query}, nil
}

func (f *fakePipeline) Messages(_ context.Context, _ string) ([]session.Message, error) {
	return nil, nil
}

func (f *fakePipeline) Summary(_ context.Context, _ string) (*session.Summary, error) {
	return f.summary, nil
}

func (f *fakePipeline) DeleteSession(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func (f *fakePipeline) Stats() pipeline.UsageStats {
	return pipeline.UsageStats{TotalQueries: 2, LLMCalls: 1, Ratio: 0.5}
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	for _, tl := range s.tools() {
		if tl.definition.Name != name {
			continue
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		result, err := tl.handle(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, result)
		return result
	}

	t.Fatalf("tool %s not registered", name)
	return nil
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func newTestServer(p Pipeline) *Server {
	return NewServer(p, strings.NewReader(""), &bytes.Buffer{})
}

func TestToolNames(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	var names []string
	for _, tl := range s.tools() {
		names = append(names, tl.definition.Name)
	}

	assert.Equal(t, []string{"chat", "session_messages", "session_summary", "delete_session", "stats"}, names)
}

func TestChatTool(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	result := call(t, s, "chat", map[string]any{"session_id": "s1", "message": "hi"})
	require.False(t, result.IsError)

	var out pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	assert.Equal(t, "echo: hi", out.Response)
}

func TestChatToolErrors(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	result := call(t, s, "chat", map[string]any{"session_id": "s1"})
	assert.True(t, result.IsError)

	result = call(t, s, "chat", map[string]any{"session_id": "", "message": "hi"})
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), session.ErrInvalidID.Error())
}

func TestSessionTools(t *testing.T) {
	p := &fakePipeline{}
	s := newTestServer(p)

	result := call(t, s, "session_messages", map[string]any{"session_id": "s1"})
	assert.Equal(t, "[]", text(t, result))

	result = call(t, s, "session_summary", map[string]any{"session_id": "s1"})
	assert.Equal(t, "No summary available for this session", text(t, result))

	p.summary = &session.Summary{KeyFacts: []string{"User prefers Go"}}
	result = call(t, s, "session_summary", map[string]any{"session_id": "s1"})
	assert.Contains(t, text(t, result), "User prefers Go")

	result = call(t, s, "delete_session", map[string]any{"session_id": "s1"})
	assert.Equal(t, "ok", text(t, result))
	assert.Equal(t, []string{"s1"}, p.deleted)
}

func TestStatsTool(t *testing.T) {
	s := newTestServer(&fakePipeline{})

	result := call(t, s, "stats", nil)

	var out pipeline.UsageStats
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	assert.Equal(t, int64(2), out.TotalQueries)
	assert.Equal(t, 0.5, out.Ratio)
}
