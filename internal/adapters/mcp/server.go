// Package mcpadapter exposes document listing and question answering as
// Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	serverName    = "docqa"
	serverVersion = "1.0.0"
)

type Server struct {
	answerer ports.QuestionAnswerer
	reader   ports.DocumentReader
	mcp      *server.MCPServer
}

func New(answerer ports.QuestionAnswerer, reader ports.DocumentReader) *Server {
	s := &Server{
		answerer: answerer,
		reader:   reader,
		mcp:      server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the ids of all indexed PDF documents."),
		mcp.WithBoolean("details",
			mcp.Description("Return filename, page and chunk counts and indexing time for each document instead of bare ids."),
		),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using only the selected documents. Returns the answer with page citations, the source passages and follow-up questions."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithArray("document_ids",
			mcp.Required(),
			mcp.Description("Ids of the documents to search, as returned by list_documents."),
			mcp.WithStringItems(),
		),
	), s.ask)

	return s
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if details, _ := request.GetArguments()["details"].(bool); details {
		records, err := s.reader.DescribeDocuments(ctx)
		if err != nil {
			slog.Error("mcp_describe_documents_failed", "error", err)
			return mcp.NewToolResultError("could not list documents"), nil
		}
		return jsonResult(records)
	}

	ids, err := s.reader.ListDocuments(ctx)
	if err != nil {
		slog.Error("mcp_list_documents_failed", "error", err)
		return mcp.NewToolResultError("could not list documents"), nil
	}
	return jsonResult(ids)
}

type askSource struct {
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type askResult struct {
	Answer            string      `json:"answer"`
	Sources           []askSource `json:"sources"`
	FollowUpQuestions []string    `json:"followup_questions"`
}

func (s *Server) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("No question provided."), nil
	}
	ids, err := stringList(args["document_ids"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("No documents selected."), nil
	}

	answer, err := s.answerer.Ask(ctx, question, ids)
	if err != nil {
		slog.Error("mcp_ask_failed", "document_ids", ids, "error", err)
		return mcp.NewToolResultError("An error occurred while processing your question."), nil
	}

	out := askResult{
		Answer:            answer.Text,
		Sources:           make([]askSource, 0, len(answer.Sources)),
		FollowUpQuestions: answer.FollowUpQuestions,
	}
	for _, src := range answer.Sources {
		out.Sources = append(out.Sources, askSource{
			Source:     src.Source,
			PageNumber: src.Chunk.PageNumber,
			Text:       src.Chunk.Text,
			Score:      src.Score,
		})
	}
	if out.FollowUpQuestions == nil {
		out.FollowUpQuestions = []string{}
	}
	return jsonResult(out)
}

func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("document_ids must contain strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("document_ids must be an array of strings")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
