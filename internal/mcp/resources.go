// ABOUTME: MCP resource implementations for the meds engine.
// ABOUTME: Provides meds://due, meds://today, and meds://low-stock resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	dueURI      = "meds://due"
	todayURI    = "meds://today"
	lowStockURI = "meds://low-stock"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         dueURI,
		Name:        "Due Medicines",
		Description: "Medicines due right now that have not been taken or skipped",
		MIMEType:    "application/json",
	}, s.handleDueResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         todayURI,
		Name:        "Today's Doses",
		Description: "Scheduled, taken, skipped and pending counts for today",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         lowStockURI,
		Name:        "Low Stock",
		Description: "Active medicines at or below their low stock threshold",
		MIMEType:    "application/json",
	}, s.handleLowStockResource)
}

// Resource handlers

func (s *Server) handleDueResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	now := s.eng.Now()
	pending, err := s.eng.GetPendingNow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending medicines: %w", err)
	}

	return jsonResource(dueURI, map[string]any{
		"as_of":   now,
		"count":   len(pending),
		"pending": pending,
	})
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.today(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(todayURI, out)
}

func (s *Server) handleLowStockResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	low, err := s.eng.GetLowStockMedicines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get low stock: %w", err)
	}

	return jsonResource(lowStockURI, map[string]any{
		"count":     len(low),
		"medicines": low,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
