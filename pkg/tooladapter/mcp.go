// Package tooladapter ships ImmAgent's one concrete ToolProvider, wrapping
// an MCP server over stdio or SSE via mark3labs/mcp-go.
package tooladapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/immagent/immagent/pkg/immerr"
	"github.com/immagent/immagent/pkg/logging"
)

// ServerType selects the MCP transport.
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
)

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	ServerType ServerType
	Command    string            // stdio: command to launch
	Args       []string          // stdio: arguments
	Envs       map[string]string // stdio: environment
	BaseURL    string            // sse: server base URL
	Headers    map[string]string // sse: request headers
}

// MCPToolProvider implements advance.ToolProvider against a single MCP
// server connection. toolName is the MCP tool's own name, unprefixed —
// the advance engine is responsible for whatever namespacing its
// completion provider's tool-call payload expects.
type MCPToolProvider struct {
	client *client.Client
}

// NewMCPToolProvider builds the underlying transport from cfg but does
// not start or initialize it; call Connect before the first Execute.
func NewMCPToolProvider(cfg ServerConfig) (*MCPToolProvider, error) {
	c, err := newMCPClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "tooladapter: construct mcp client")
	}
	return &MCPToolProvider{client: c}, nil
}

func newMCPClient(cfg ServerConfig) (*client.Client, error) {
	serverType := cfg.ServerType
	if serverType == "" {
		switch {
		case cfg.BaseURL != "":
			serverType = ServerTypeSSE
		case cfg.Command != "":
			serverType = ServerTypeStdio
		default:
			return nil, errors.New("server_type is required")
		}
	}

	switch serverType {
	case ServerTypeStdio:
		if cfg.Command == "" {
			return nil, errors.New("command is required for stdio server")
		}
		envArgs := make([]string, 0, len(cfg.Envs))
		for k, v := range cfg.Envs {
			envArgs = append(envArgs, fmt.Sprintf("%s=%s", k, v))
		}
		tp := transport.NewStdio(cfg.Command, envArgs, cfg.Args...)
		return client.NewClient(tp), nil
	case ServerTypeSSE:
		if cfg.BaseURL == "" {
			return nil, errors.New("base_url is required for sse server")
		}
		tp, err := transport.NewSSE(cfg.BaseURL, transport.WithHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		return client.NewClient(tp), nil
	default:
		return nil, errors.Errorf("invalid mcp server type %q", serverType)
	}
}

// Connect starts the transport and performs the MCP initialize handshake.
func (p *MCPToolProvider) Connect(ctx context.Context) error {
	if err := p.client.Start(ctx); err != nil {
		return errors.Wrap(err, "tooladapter: start mcp transport")
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "immagent", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := p.client.Initialize(ctx, initReq); err != nil {
		return errors.Wrap(err, "tooladapter: mcp initialize")
	}
	return nil
}

func (p *MCPToolProvider) Close() error {
	return p.client.Close()
}

// Execute satisfies advance.ToolProvider. argumentsJSON must decode to a
// JSON object — MCP's CallToolRequest takes named arguments, not a
// positional array.
func (p *MCPToolProvider) Execute(ctx context.Context, toolName, argumentsJSON string) (string, error) {
	ctx = logging.WithOperation(ctx, "mcp_call")
	log := logging.G(ctx).WithField("tool", toolName)

	var args map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return "", immerr.NewToolExecutionError(toolName, errors.Wrap(err, "decode arguments"))
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	result, err := p.client.CallTool(ctx, req)
	if err != nil {
		log.WithError(err).Warn("tooladapter: mcp call_tool failed")
		return "", immerr.NewToolExecutionError(toolName, err)
	}

	content := ""
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			content += text.Text
		} else {
			content += fmt.Sprintf("%v", c)
		}
	}

	if result.IsError {
		return "", immerr.NewToolExecutionError(toolName, errors.New(content))
	}

	log.Debug("tooladapter: mcp call_tool succeeded")
	return content, nil
}
