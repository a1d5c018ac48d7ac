package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
)

func (s *Server) registerTools() {
	// harvest_simulate: run one tank/basin configuration against a dataset.
	s.mcpServer.AddTool(
		mcplib.NewTool("harvest_simulate",
			mcplib.WithDescription(`Simulate a stormwater harvesting tank and detention basin against a registered rainfall/runoff dataset.

WHEN TO USE: to evaluate a candidate tank size, pump rate or irrigation
demand. Call harvest_datasets first to find a dataset name.

Demand modes:
- constant: demand (m³/s) applies whenever it is not raining
- estimated: daily irrigation from weekly target depths (mm) keyed by month
  (1-12) or ISO week (1-53), scaled by irrigation_area (m²)

WHAT YOU GET BACK: the run summary (demand_total, harvest_total,
fraction_supplied) and the mass-balance audit. fraction_supplied is null
when there was no demand at all.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("dataset",
				mcplib.Description("Name of a registered dataset"),
				mcplib.Required(),
			),
			mcplib.WithNumber("tank_max",
				mcplib.Description("Tank capacity, m³"),
				mcplib.Required(),
				mcplib.Min(0),
			),
			mcplib.WithNumber("tank_start",
				mcplib.Description("Initial tank volume, m³ (at most tank_max)"),
				mcplib.Min(0),
			),
			mcplib.WithNumber("pump_capacity",
				mcplib.Description("Transfer pump capacity from runoff and basin to the tank, m³/s"),
				mcplib.Required(),
				mcplib.Min(0),
			),
			mcplib.WithNumber("det_max",
				mcplib.Description("Detention basin capacity, m³"),
				mcplib.Min(0),
			),
			mcplib.WithString("demand_mode",
				mcplib.Description("How irrigation demand is derived"),
				mcplib.Enum(string(model.DemandConstant), string(model.DemandEstimated)),
				mcplib.DefaultString(string(model.DemandConstant)),
			),
			mcplib.WithNumber("demand",
				mcplib.Description("Constant demand flow, m³/s (constant mode)"),
				mcplib.Min(0),
			),
			mcplib.WithNumber("irrigation_area",
				mcplib.Description("Irrigated area, m² (estimated mode)"),
				mcplib.Min(0),
			),
			mcplib.WithString("target_period",
				mcplib.Description("Calendar period the irrigation targets are keyed by (estimated mode)"),
				mcplib.Enum(string(model.TargetByMonth), string(model.TargetByWeek)),
			),
			mcplib.WithObject("irrigation_targets",
				mcplib.Description(`Weekly irrigation depth in mm keyed by period number, e.g. {"1": 25, "2": 22.5}`),
			),
			mcplib.WithBoolean("include_series",
				mcplib.Description("Return the per-step table as well (can be large)"),
			),
		),
		s.handleSimulate,
	)

	// harvest_datasets: list what can be simulated.
	s.mcpServer.AddTool(
		mcplib.NewTool("harvest_datasets",
			mcplib.WithDescription("List registered rainfall/runoff datasets with their row counts, time span and content hash."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleDatasets,
	)

	// harvest_runs: earlier results, newest first.
	s.mcpServer.AddTool(
		mcplib.NewTool("harvest_runs",
			mcplib.WithDescription(`Look up earlier simulation runs.

Pass run_id to fetch one run, or dataset and limit to list the most recent
runs (newest first). Use this to compare candidate tank sizes without
re-running them.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("ID of a single run to fetch"),
			),
			mcplib.WithString("dataset",
				mcplib.Description("Only list runs against this dataset"),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum runs to list"),
				mcplib.Min(1),
				mcplib.Max(100),
				mcplib.DefaultNumber(10),
			),
		),
		s.handleRuns,
	)
}

// paramsFromRequest builds a parameter record from tool arguments. Omitted
// numbers are zero and left for Params.Validate to judge.
func paramsFromRequest(request mcplib.CallToolRequest) (model.Params, error) {
	p := model.Params{
		TankMax:        request.GetFloat("tank_max", 0),
		TankStart:      request.GetFloat("tank_start", 0),
		PumpCapacity:   request.GetFloat("pump_capacity", 0),
		DetentionMax:   request.GetFloat("det_max", 0),
		DemandMode:     model.DemandMode(request.GetString("demand_mode", string(model.DemandConstant))),
		Demand:         request.GetFloat("demand", 0),
		IrrigationArea: request.GetFloat("irrigation_area", 0),
		TargetPeriod:   model.TargetPeriod(request.GetString("target_period", "")),
	}

	raw, ok := request.GetArguments()["irrigation_targets"]
	if !ok || raw == nil {
		return p, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return p, fmt.Errorf("irrigation_targets must be an object of period number to depth (mm)")
	}
	p.IrrigationTargets = make(map[int]float64, len(obj))
	for k, v := range obj {
		period, err := strconv.Atoi(k)
		if err != nil {
			return p, fmt.Errorf("irrigation_targets: key %q is not a period number", k)
		}
		depth, ok := v.(float64)
		if !ok {
			return p, fmt.Errorf("irrigation_targets: value for %q must be a number", k)
		}
		p.IrrigationTargets[period] = depth
	}
	return p, nil
}

func (s *Server) handleSimulate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	dataset := request.GetString("dataset", "")
	if dataset == "" {
		return errorResult("dataset is required"), nil
	}
	p, err := paramsFromRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	resp, err := s.svc.Simulate(ctx, dataset, p, request.GetBool("include_series", false))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		case errors.Is(err, storage.ErrNotFound):
			return errorResult(fmt.Sprintf("dataset %q is not registered; call harvest_datasets to list what is available", dataset)), nil
		default:
			s.logger.Error("mcp: simulate failed", "dataset", dataset, "error", err)
			return errorResult(fmt.Sprintf("simulation failed: %v", err)), nil
		}
	}

	out := compactRun(resp.Run)
	if resp.Series != nil {
		out["series"] = resp.Series
	}
	resultData, _ := json.MarshalIndent(out, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleDatasets(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	datasets := s.svc.Datasets()

	resultData, _ := json.MarshalIndent(map[string]any{
		"datasets": datasets,
		"total":    len(datasets),
	}, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleRuns(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if idStr := request.GetString("run_id", ""); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return errorResult(fmt.Sprintf("run_id %q is not a valid UUID", idStr)), nil
		}
		run, err := s.svc.GetRun(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errorResult(fmt.Sprintf("run %s not found", id)), nil
			}
			return errorResult(fmt.Sprintf("query failed: %v", err)), nil
		}
		resultData, _ := json.MarshalIndent(run, "", "  ")
		return &mcplib.CallToolResult{
			Content: []mcplib.Content{
				mcplib.TextContent{Type: "text", Text: string(resultData)},
			},
		}, nil
	}

	limit := request.GetInt("limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}
	runs, total, err := s.svc.ListRuns(ctx, request.GetString("dataset", ""), limit, 0)
	if err != nil {
		return errorResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	compacted := make([]map[string]any, len(runs))
	for i, r := range runs {
		compacted[i] = compactRun(r)
	}
	resultData, _ := json.MarshalIndent(map[string]any{
		"runs":  compacted,
		"total": total,
	}, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}
