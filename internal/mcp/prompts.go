package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// size-tank: walks the agent through a tank size sweep on one dataset.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("size-tank",
			mcplib.WithPromptDescription("Find the smallest tank that meets a target share of irrigation demand"),
			mcplib.WithArgument("dataset",
				mcplib.ArgumentDescription("Name of the registered dataset to size against"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("target_fraction",
				mcplib.ArgumentDescription("Share of demand the tank must supply, 0-1 (default 0.9)"),
			),
		),
		s.handleSizeTankPrompt,
	)

	// harvest-setup: system prompt snippet explaining the tools.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("harvest-setup",
			mcplib.WithPromptDescription("System prompt snippet explaining the harvest simulation tools and their units"),
		),
		s.handleSetupPrompt,
	)
}

func (s *Server) handleSizeTankPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	dataset := request.Params.Arguments["dataset"]
	if dataset == "" {
		return nil, fmt.Errorf("dataset argument is required")
	}
	target := request.Params.Arguments["target_fraction"]
	if target == "" {
		target = "0.9"
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Size a harvesting tank against %s", dataset),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Find the smallest tank that supplies at least %s of irrigation demand on dataset "%s".

1. CALL harvest_datasets and confirm "%s" is registered. Note its time span;
   a short record will not capture dry years.

2. CALL harvest_runs with dataset="%s" to see which sizes were already tried.
   Reuse those results instead of re-running them.

3. SWEEP tank_max with harvest_simulate, keeping pump_capacity, det_max and
   the demand settings fixed. Start wide (e.g. 10, 100, 1000 m³) and bisect
   between the last size below target and the first size at or above it.

4. CHECK every result:
   - fraction_supplied null means there was no demand; fix the demand settings.
   - mass_balance_ok false means the totals cannot be trusted; report it.

5. REPORT the chosen tank_max, its fraction_supplied and harvest_total, and
   the next size down with its fraction_supplied for comparison.`, target, dataset, dataset, dataset),
				},
			},
		},
	}, nil
}

func (s *Server) handleSetupPrompt(_ context.Context, _ mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Stormwater harvesting simulation tools",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `You have access to a stormwater harvesting simulator. It routes a recorded
runoff series through a detention basin and a pump into a storage tank, and
supplies irrigation demand from the tank, one timestep at a time.

## Available Tools

- harvest_datasets: List the rainfall/runoff datasets you can simulate against
- harvest_simulate: Run one tank/pump/basin/demand configuration
- harvest_runs: Fetch earlier runs by id, or list the latest for a dataset

## Units

- Volumes (tank_max, tank_start, det_max, all totals): m³
- Flows (pump_capacity, constant demand): m³/s
- Irrigation targets: weekly depth in mm, keyed by month (1-12) or ISO week (1-53)
- irrigation_area: m²

## Reading Results

- harvest_total is the demand volume actually supplied from the tank.
- fraction_supplied = harvest_total / demand_total, null when there was no demand.
- overflow is runoff lost past the basin plus water spilled at the full tank.
- mass_balance_ok confirms inflow = outflow + change in storage within tolerance.`,
				},
			},
		},
	}, nil
}
