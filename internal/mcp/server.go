// Package mcp exposes record validation, heteroplasmy normalization, HPO
// lookup and run history as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/service"
)

const (
	serverName    = "mito-cohort-pipeline"
	serverVersion = "v0.1.0"
)

// Dependencies are the optional collaborators of the MCP server. Tools whose
// dependency is nil report an error result instead of failing the session.
type Dependencies struct {
	RunStore domain.RunStore
	Resolver domain.OntologyResolver
}

// Server represents the MCP server implementation
type Server struct {
	mcpServer  *mcp.Server
	deps       Dependencies
	loader     *service.RecordLoader
	validator  *service.RecordValidator
	normalizer *service.TissueNormalizer
	logger     *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(deps Dependencies, logger *logrus.Logger) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
		deps:       deps,
		loader:     service.NewRecordLoader(logger),
		validator:  service.NewRecordValidator(logger),
		normalizer: service.NewTissueNormalizer(logger),
		logger:     logger,
	}

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_record",
		Description: "Validate a patient record JSON document and check the target variants against a heteroplasmy threshold.",
	}, s.handleValidateRecord)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "normalize_heteroplasmy",
		Description: "Correct an m.3243A>G heteroplasmy percentage with the blood (age) or urine (sex) model.",
	}, s.handleNormalizeHeteroplasmy)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "canonicalize_tissue",
		Description: "Map a free-text tissue label to its canonical tissue category.",
	}, s.handleCanonicalizeTissue)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "parse_variant_label",
		Description: "Parse a mitochondrial variant given as A3243G or m.3243A>G.",
	}, s.handleParseVariantLabel)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "resolve_hpo_term",
		Description: "Resolve an HPO identifier such as HP:0001250 to its term name.",
	}, s.handleResolveHPOTerm)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_runs",
		Description: "List recorded pipeline runs, newest first.",
	}, s.handleListRuns)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_run",
		Description: "Fetch one pipeline run report with its rejected records.",
	}, s.handleGetRun)

	s.logger.WithField("tool_count", 7).Debug("Registered MCP tools")
}

// Run serves MCP over stdio until the client disconnects or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithField("server", serverName).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
