package tools

import (
	"context"
	"fmt"
	"strings"

	mcpgo "github.com/metoro-io/mcp-golang"
	http "github.com/metoro-io/mcp-golang/transport/http"
)

// ConnectMCP opens and initializes a client for the MCP server at host.
func ConnectMCP(ctx context.Context, host string) (*mcpgo.Client, error) {
	tpt := http.NewHTTPClientTransport(host)
	client := mcpgo.NewClient(tpt)

	if _, err := client.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing MCP client for %s: %w", host, err)
	}
	return client, nil
}

// MCPClient is the part of *mcpgo.Client that FromMCP uses.
type MCPClient interface {
	ListTools(ctx context.Context, cursor *string) (*mcpgo.ToolsResponse, error)
	CallTool(ctx context.Context, name string, arguments any) (*mcpgo.ToolResponse, error)
}

// FromMCP lists the tools an MCP server offers, following pagination, and
// wraps each as a descriptor whose invocation is forwarded to the server.
func FromMCP(ctx context.Context, client MCPClient) ([]*Descriptor, error) {
	var (
		out    []*Descriptor
		cursor *string
	)
	for {
		tools, err := client.ListTools(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("listing MCP tools: %w", err)
		}

		for _, t := range tools.Tools {
			desc := ""
			if t.Description != nil {
				desc = *t.Description
			}
			d, err := Dynamic(t.Name, desc, t.InputSchema, mcpCall(client, t.Name))
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}

		if tools.NextCursor == nil || *tools.NextCursor == "" {
			return out, nil
		}
		cursor = tools.NextCursor
	}
}

// RegisterMCP connects to host and registers every tool it offers.
func RegisterMCP(ctx context.Context, reg *Registry, host string, opts ...RegisterOption) (*mcpgo.Client, error) {
	client, err := ConnectMCP(ctx, host)
	if err != nil {
		return nil, err
	}
	if err := registerFrom(ctx, reg, client, opts...); err != nil {
		return nil, err
	}
	return client, nil
}

func registerFrom(ctx context.Context, reg *Registry, client MCPClient, opts ...RegisterOption) error {
	ds, err := FromMCP(ctx, client)
	if err != nil {
		return err
	}
	for _, d := range ds {
		if err := reg.Register(d, opts...); err != nil {
			return err
		}
	}
	reg.log.Debug().Int("tools", len(ds)).Msg("registered MCP tools")
	return nil
}

func mcpCall(client MCPClient, name string) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, args map[string]any) (any, error) {
		resp, err := client.CallTool(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return joinContent(resp), nil
	}
}

// joinContent concatenates the text parts of a tool response.
func joinContent(resp *mcpgo.ToolResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, c := range resp.Content {
		if c != nil && c.TextContent != nil {
			parts = append(parts, c.TextContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}
