package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const runURIPrefix = "harvest://runs/"

func (s *Server) registerResources() {
	// harvest://datasets: registered input series.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"harvest://datasets",
			"Datasets",
			mcplib.WithResourceDescription("Registered rainfall/runoff datasets available for simulation"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleDatasetsResource,
	)

	// harvest://runs/recent: the latest persisted runs across datasets.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"harvest://runs/recent",
			"Recent Runs",
			mcplib.WithResourceDescription("The most recent simulation runs across all datasets"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsRecent,
	)

	// harvest://runs/{id}: one run with its summary and audit.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"harvest://runs/{id}",
			"Run",
			mcplib.WithTemplateDescription("A single simulation run with its parameters, summary and mass-balance audit"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleRun,
	)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDatasetsResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonResource(request.Params.URI, map[string]any{
		"datasets": s.svc.Datasets(),
	})
}

func (s *Server) handleRunsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	runs, total, err := s.svc.ListRuns(ctx, "", 20, 0)
	if err != nil {
		return nil, fmt.Errorf("mcp: recent runs: %w", err)
	}
	compacted := make([]map[string]any, len(runs))
	for i, r := range runs {
		compacted[i] = compactRun(r)
	}
	return jsonResource(request.Params.URI, map[string]any{
		"runs":  compacted,
		"total": total,
	})
}

func (s *Server) handleRun(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id, err := parseRunURI(uri)
	if err != nil {
		return nil, err
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: run %s: %w", id, err)
	}
	return jsonResource(uri, run)
}

// parseRunURI extracts the run ID from harvest://runs/{id}.
func parseRunURI(uri string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(uri, runURIPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return uuid.Nil, fmt.Errorf("mcp: invalid run URI: %q", uri)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("mcp: invalid run id in %q: %w", uri, err)
	}
	return id, nil
}
