package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type researchParams struct {
	SessionID  string `json:"session_id"`
	Topic      string `json:"topic"`
	NumResults int    `json:"num_results"`
}

type chatParams struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type listSessionsParams struct{}

type researchResult struct {
	SessionID           string                `json:"session_id"`
	Status              string                `json:"status"`
	Topic               string                `json:"topic"`
	Timestamp           time.Time             `json:"timestamp"`
	Summary             string                `json:"summary"`
	Notes               string                `json:"notes"`
	KeyInsights         string                `json:"key_insights"`
	Sources             []*model.SearchResult `json:"sources"`
	Suggestions         []string              `json:"suggestions"`
	ReflectingQuestions []string              `json:"reflecting_questions"`
}

type chatResult struct {
	SessionID string    `json:"session_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type listSessionsResult struct {
	Sessions []*model.SessionSummary `json:"sessions"`
	Total    int                     `json:"total"`
}

func researchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "research",
		Description: "Run academic research on a topic: search the literature and synthesize a summary, structured notes, key insights and follow-up questions into the session",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Session to research into. Omit to start a new session",
				},
				"topic": {
					Type:        "string",
					Description: "Research topic or question",
				},
				"num_results": {
					Type:        "integer",
					Description: "Number of articles to fetch (1-10, default 2)",
				},
			},
			Required: []string{"topic"},
		},
	}
}

func chatTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "chat",
		Description: "Ask a follow-up question grounded in the session's latest research and recent conversation",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Session providing the conversation context. Omit to start a new session",
				},
				"message": {
					Type:        "string",
					Description: "User question or message",
				},
			},
			Required: []string{"message"},
		},
	}
}

func listSessionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_sessions",
		Description: "List all research sessions with their current topic and activity counts",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}
}

func (s *Server) handleResearch(ctx context.Context, req *mcp.CallToolRequest, params *researchParams) (*mcp.CallToolResult, any, error) {
	out, err := s.research.Research(ctx, &research.Input{
		SessionID:  model.SessionID(params.SessionID),
		Topic:      params.Topic,
		NumResults: params.NumResults,
	})
	if err != nil {
		return nil, nil, err
	}

	return textResult(&researchResult{
		SessionID:           string(out.SessionID),
		Status:              string(out.Status),
		Topic:               out.Topic,
		Timestamp:           out.Timestamp,
		Summary:             out.Summary,
		Notes:               out.Notes,
		KeyInsights:         out.Insights,
		Sources:             out.Results,
		Suggestions:         out.Suggestions,
		ReflectingQuestions: out.ReflectingQuestions,
	})
}

func (s *Server) handleChat(ctx context.Context, req *mcp.CallToolRequest, params *chatParams) (*mcp.CallToolResult, any, error) {
	out, err := s.chat.Chat(ctx, &chat.Input{
		SessionID: model.SessionID(params.SessionID),
		Message:   params.Message,
	})
	if err != nil {
		return nil, nil, err
	}

	return textResult(&chatResult{
		SessionID: string(out.SessionID),
		Response:  out.Response,
		Timestamp: out.Timestamp,
	})
}

func (s *Server) handleListSessions(ctx context.Context, req *mcp.CallToolRequest, params *listSessionsParams) (*mcp.CallToolResult, any, error) {
	summaries, err := s.sessions.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	return textResult(&listSessionsResult{
		Sessions: summaries,
		Total:    len(summaries),
	})
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
