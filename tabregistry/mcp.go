// CLAUDE:SUMMARY Registers the read-only registry MCP tools: savedtabs_list_tabs, savedtabs_get_tab.
package tabregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/savedtabs/kit"
)

// RegisterMCP registers the registry tools on an MCP server.
func (r *Registry) RegisterMCP(srv *mcp.Server) {
	r.registerListTabsTool(srv)
	r.registerGetTabTool(srv)
}

// toolTimeout bounds one tool call, mailbox wait included.
const toolTimeout = 5 * time.Second

func (r *Registry) toolMiddleware(name string) kit.Middleware {
	return kit.Chain(kit.Logging(r.logger, name), kit.Timeout(toolTimeout))
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- list_tabs ---

type listTabsResponse struct {
	Tabs  []Record `json:"tabs"`
	Stats Stats    `json:"stats"`
}

func (r *Registry) registerListTabsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "savedtabs_list_tabs",
		Description: "List every tracked tab with its saved-item count, indicator state and badge label.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		recs, err := r.Records(ctx)
		if err != nil {
			return nil, err
		}
		return listTabsResponse{Tabs: recs, Stats: r.Stats()}, nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, r.toolMiddleware("list_tabs")(endpoint), decode)
}

// --- get_tab ---

type getTabRequest struct {
	TabID string `json:"tab_id"`
}

func (r *Registry) registerGetTabTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "savedtabs_get_tab",
		Description: "Get one tab's saved-item count, indicator state and badge label.",
		InputSchema: inputSchema(map[string]any{
			"tab_id": map[string]any{"type": "string", "description": "Tab (page target) id"},
		}, []string{"tab_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		gr := req.(*getTabRequest)
		rec, ok, err := r.Record(ctx, gr.TabID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("tab %q not found", gr.TabID)
		}
		return rec, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var gr getTabRequest
		if err := json.Unmarshal(req.Params.Arguments, &gr); err != nil {
			return nil, err
		}
		if gr.TabID == "" {
			return nil, fmt.Errorf("tab_id is required")
		}
		return &kit.MCPDecodeResult{
			Request:   &gr,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTabID(ctx, gr.TabID) },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, r.toolMiddleware("get_tab")(endpoint), decode)
}
