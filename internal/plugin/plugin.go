// Package plugin defines the go-plugin surface for extending the agent
// with external tools served over gRPC from a separate process.
package plugin

import (
	"context"

	hcplugin "github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/apollo/internal/tool"
)

// HandshakeConfig is used to handshake between host and plugin.
var HandshakeConfig = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "APOLLO_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "apollo-agent",
}

// Plugin defines the handshake and capabilities.
type Plugin interface {
	Name() string
	Version() string
	Type() PluginType
}

type PluginType string

const (
	PluginTypeTool     PluginType = "tool"
	PluginTypeProvider PluginType = "provider"
)

// ToolPlugin serves one or more external tools. Execute returns the
// payload and an optional warning.
type ToolPlugin interface {
	Plugin
	Execute(ctx context.Context, toolName string, args map[string]interface{}) (payload string, warning string, err error)
}

// HandlerFor adapts a plugin-served tool into a registry handler.
func HandlerFor(tp ToolPlugin, toolName string) tool.Handler {
	return func(ctx context.Context, sessionID string, args tool.Args) (*tool.Result, error) {
		payload, warning, err := tp.Execute(ctx, toolName, args)
		if err != nil {
			return nil, err
		}
		return &tool.Result{Payload: payload, Warning: warning}, nil
	}
}
