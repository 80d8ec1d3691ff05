package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// MCPServer returns an MCP server exposing the operator tools.
func (p *Provider) MCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		"taskboard-realtime",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("list_ws_clients",
		mcp.WithDescription("List connected WebSocket clients"),
	), p.toolListClients)

	s.AddTool(mcp.NewTool("ws_publish",
		mcp.WithDescription("Publish a realtime event to connected clients. Without organization_id the event reaches every connection."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type, e.g. task_updated")),
		mcp.WithString("payload", mcp.Description("Event payload as a JSON document")),
		mcp.WithString("organization_id", mcp.Description("Organization scope")),
		mcp.WithString("user_id", mcp.Description("Attributed user")),
		mcp.WithString("team_id", mcp.Description("Team scope")),
	), p.toolPublish)

	s.AddTool(mcp.NewTool("list_ws_scopes",
		mcp.WithDescription("List organizations with open connections and their connection counts"),
	), p.toolListScopes)

	return s
}

func (p *Provider) toolListClients(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if p.service == nil {
		return mcp.NewToolResultError("realtime service not initialized"), nil
	}
	infos := p.clientInfos()
	return jsonResult(map[string]any{"clients": infos, "count": len(infos)})
}

func (p *Provider) toolPublish(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if p.service == nil {
		return mcp.NewToolResultError("realtime service not initialized"), nil
	}
	eventType := req.GetString("type", "")
	if eventType == "" {
		return mcp.NewToolResultError("type is required"), nil
	}

	evt := types.Event{
		Type:           types.EventType(eventType),
		Payload:        json.RawMessage(`{}`),
		UserID:         req.GetString("user_id", ""),
		OrganizationID: req.GetString("organization_id", ""),
		TeamID:         req.GetString("team_id", ""),
	}
	if raw := req.GetString("payload", ""); raw != "" {
		evt.Payload = json.RawMessage(raw)
	}
	if err := p.service.PublishEvent(evt); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"published":       true,
		"type":            evt.Type,
		"organization_id": evt.OrganizationID,
	})
}

func (p *Provider) toolListScopes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if p.service == nil {
		return mcp.NewToolResultError("realtime service not initialized"), nil
	}
	scopes := p.service.GetScopes()
	result := make([]map[string]any, 0, len(scopes))
	for org, count := range scopes {
		result = append(result, map[string]any{
			"organization_id": org,
			"connections":     count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["organization_id"].(string) < result[j]["organization_id"].(string)
	})
	return jsonResult(map[string]any{"scopes": result, "count": len(result)})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
