package plugin

import (
	"context"
	"errors"
	"fmt"

	hcplugin "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const toolServiceName = "apollo.plugin.ToolService"

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]hcplugin.Plugin{
	"tool": &ToolGRPCPlugin{},
}

// ToolGRPCPlugin is the implementation of hcplugin.GRPCPlugin so we can
// serve/consume this. The wire format is a structpb.Struct in both
// directions, so no generated code is required on either side.
type ToolGRPCPlugin struct {
	hcplugin.Plugin
	Impl ToolPlugin
}

func (p *ToolGRPCPlugin) GRPCServer(broker *hcplugin.GRPCBroker, s *grpc.Server) error {
	s.RegisterService(&toolServiceDesc, &ToolGRPCServer{Impl: p.Impl})
	return nil
}

func (p *ToolGRPCPlugin) GRPCClient(ctx context.Context, broker *hcplugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &ToolGRPCClient{conn: c}, nil
}

type toolService interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var toolServiceDesc = grpc.ServiceDesc{
	ServiceName: toolServiceName,
	HandlerType: (*toolService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: toolExecuteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "apollo/plugin/tool.proto",
}

func toolExecuteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(toolService).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + toolServiceName + "/Execute",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(toolService).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ToolGRPCServer is the server side of the plugin connection.
type ToolGRPCServer struct {
	Impl ToolPlugin
}

func (s *ToolGRPCServer) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	name, _ := fields["tool"].(string)
	args, _ := fields["args"].(map[string]interface{})

	payload, warning, err := s.Impl.Execute(ctx, name, args)

	resp := map[string]interface{}{
		"payload": payload,
		"warning": warning,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return structpb.NewStruct(resp)
}

// ToolGRPCClient is the host side of the plugin connection.
type ToolGRPCClient struct {
	conn *grpc.ClientConn

	// Identity advertised by the plugin process.
	PluginName    string
	PluginVersion string
}

func (c *ToolGRPCClient) Name() string     { return c.PluginName }
func (c *ToolGRPCClient) Version() string  { return c.PluginVersion }
func (c *ToolGRPCClient) Type() PluginType { return PluginTypeTool }

func (c *ToolGRPCClient) Execute(ctx context.Context, toolName string, args map[string]interface{}) (string, string, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"tool": toolName,
		"args": args,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+toolServiceName+"/Execute", req, resp); err != nil {
		return "", "", fmt.Errorf("plugin call failed: %w", err)
	}

	fields := resp.AsMap()
	if msg, ok := fields["error"].(string); ok && msg != "" {
		return "", "", errors.New(msg)
	}
	payload, _ := fields["payload"].(string)
	warning, _ := fields["warning"].(string)
	return payload, warning, nil
}
