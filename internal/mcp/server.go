package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"rag_chatbot/internal/corpus"
)

// Corpus is satisfied by *corpus.Machine.
type Corpus interface {
	Ask(ctx context.Context, question string) (corpus.Answer, error)
	Status() corpus.Status
}

// Server wraps the MCP server with the chatbot tools registered.
type Server struct {
	server *mcp.Server
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(c Corpus, version string) *Server {
	impl := &mcp.Implementation{
		Name:    "rag-chatbot",
		Version: version,
	}
	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question from the uploaded document, or from the system documents when no upload is active. The answer is HTML.",
	}, makeAskHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "corpus_status",
		Description: "Report whether a user document is active and how many chunks each corpus holds.",
	}, makeStatusHandler(c))

	return &Server{server: server}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves the tools over Streamable HTTP without sessions.
func NewHTTPHandler(s *Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

var errEmptyQuestion = errors.New("question is required")

func makeAskHandler(c Corpus) func(
	context.Context, *mcp.CallToolRequest, AskDocumentsInput,
) (*mcp.CallToolResult, AskDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDocumentsInput) (
		*mcp.CallToolResult, AskDocumentsOutput, error,
	) {
		question := strings.TrimSpace(input.Question)
		if question == "" {
			return nil, AskDocumentsOutput{}, errEmptyQuestion
		}

		ans, err := c.Ask(ctx, question)
		if err != nil {
			return nil, AskDocumentsOutput{}, fmt.Errorf("ask failed: %w", err)
		}
		return nil, AskDocumentsOutput{Answer: ans.Text, UsingUserFile: ans.UsingUserFile}, nil
	}
}

func makeStatusHandler(c Corpus) func(
	context.Context, *mcp.CallToolRequest, CorpusStatusInput,
) (*mcp.CallToolResult, CorpusStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ CorpusStatusInput) (
		*mcp.CallToolResult, CorpusStatusOutput, error,
	) {
		st := c.Status()
		return nil, CorpusStatusOutput{
			State:        string(st.State),
			UserReady:    st.UserReady,
			SystemReady:  st.SystemReady,
			UserFile:     st.UserFile,
			UserChunks:   st.UserChunks,
			SystemChunks: st.SystemChunks,
		}, nil
	}
}
