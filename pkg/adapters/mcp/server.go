// Package mcp exposes doorman's development tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/doorman"
	"github.com/aretw0/doorman/internal/logging"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/ports"
	"github.com/aretw0/doorman/pkg/runner"
	"github.com/aretw0/doorman/pkg/session"
	"github.com/aretw0/doorman/pkg/twiml"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CallersURI is the resource listing the callers that have a script.
const CallersURI = "doorman://callers"

// SimulateResponse is the result of the simulate_call tool.
type SimulateResponse struct {
	CallID    string        `json:"call_id" jsonschema_description:"Identifier of the simulated call"`
	Turns     []runner.Turn `json:"turns" jsonschema_description:"One entry per webhook request, in order"`
	Completed bool          `json:"completed" jsonschema_description:"Indicates if the call ran to its end"`
}

// ValidateResponse is the result of the validate_script tool.
type ValidateResponse struct {
	Valid  bool     `json:"valid" jsonschema_description:"Indicates if every step can be rendered"`
	Steps  int      `json:"steps" jsonschema_description:"Number of top-level steps"`
	Errors []string `json:"errors,omitempty" jsonschema_description:"One message per invalid step"`
}

// Server exposes script simulation and validation as an MCP Server.
type Server struct {
	lookup    ports.ScriptLookup
	endpoint  string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithEndpoint sets the callback path rendered in simulated documents.
func WithEndpoint(endpoint string) Option {
	return func(s *Server) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance over lookup.
func NewServer(lookup ports.ScriptLookup, opts ...Option) *Server {
	s := &Server{
		lookup:    lookup,
		endpoint:  twiml.DefaultEndpoint,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("doorman-mcp", strings.TrimSpace(doorman.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: simulate_call
	simulateTool := mcp.NewTool("simulate_call",
		mcp.WithDescription("Play a call from a caller through its script and return the TwiML of every turn."),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Inbound caller id whose script is used")),
		mcp.WithString("digits", mcp.Description("Digits entered on successive turns: a JSON array or a comma-separated list (optional)")),
		mcp.WithString("to", mcp.Description("Dialed number used as the SMS sender (optional)")),
		mcp.WithOutputSchema[SimulateResponse](),
	)
	s.mcpServer.AddTool(simulateTool, mcp.NewStructuredToolHandler(s.handleSimulate))

	// TOOL: validate_script
	validateTool := mcp.NewTool("validate_script",
		mcp.WithDescription("Check that every step of a script, including nested branches, can be rendered."),
		mcp.WithString("script", mcp.Required(), mcp.Description("Script as a JSON array of [command, params] pairs")),
		mcp.WithOutputSchema[ValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: list_callers
	s.mcpServer.AddTool(mcp.NewTool("list_callers",
		mcp.WithDescription("List the callers that have a script."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callers, err := s.callers(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(callers)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleSimulate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SimulateResponse, error) {
	caller, _ := args["caller"].(string)
	to, _ := args["to"].(string)
	raw, _ := args["digits"].(string)

	if caller == "" {
		return SimulateResponse{}, errors.New("caller is required")
	}
	digits, err := runner.ParseDigits(raw)
	if err != nil {
		return SimulateResponse{}, err
	}

	// Every simulation gets its own store so it never meets live calls.
	registry := session.NewRegistry(memory.NewStore(),
		session.WithEndpoint(s.endpoint),
		session.WithRegistryLogger(s.logger),
	)
	r := runner.NewRunner(registry, s.lookup, runner.WithLogger(s.logger))
	call := domain.Call{ID: "SIM-" + uuid.NewString(), From: caller, To: to}

	turns, err := runner.Simulate(ctx, r, call, digits)
	if err != nil {
		s.logger.Warn("MCP Simulate: Turn failed", "call_sid", call.ID, "err", err)
	}

	resp := SimulateResponse{CallID: call.ID, Turns: turns}
	if n := len(turns); n > 0 {
		resp.Completed = turns[n-1].Completed
	}
	return resp, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidateResponse, error) {
	raw, _ := args["script"].(string)

	script, err := domain.ParseScript([]byte(raw))
	if err != nil {
		return ValidateResponse{Errors: []string{err.Error()}}, nil
	}

	resp := ValidateResponse{Valid: true, Steps: len(script)}
	if err := twiml.Validate(script); err != nil {
		resp.Valid = false
		resp.Errors = strings.Split(err.Error(), "\n")
	}
	return resp, nil
}

func (s *Server) callers(ctx context.Context) ([]string, error) {
	lister, ok := s.lookup.(ports.ScriptLister)
	if !ok {
		return nil, errors.New("the script source cannot list its callers")
	}
	return lister.Callers(ctx)
}

func (s *Server) registerResources() {
	// EXPOSE: doorman://callers
	s.mcpServer.AddResource(mcp.NewResource(CallersURI, "Callers With a Script",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		callers, err := s.callers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list callers: %w", err)
		}
		jsonBytes, _ := json.Marshal(callers)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      CallersURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
