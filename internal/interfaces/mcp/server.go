// Package mcp 通过 stdio 以 MCP 协议暴露导入与记录工具
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"novel-graph-api/pkg/logger"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Server MCP 工具服务，协议处理由 mcp-go 完成，工具调用转给 eino 工具
type Server struct {
	name  string
	mcp   *server.MCPServer
	tools []mcpgo.Tool
}

// NewServer 创建服务，工具名重复时返回错误
func NewServer(ctx context.Context, name, version string, tools []tool.InvokableTool, opts ...server.ServerOption) (*Server, error) {
	opts = append([]server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}, opts...)
	s := &Server{name: name, mcp: server.NewMCPServer(name, version, opts...)}

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		if seen[info.Name] {
			return nil, fmt.Errorf("duplicate tool: %s", info.Name)
		}
		seen[info.Name] = true

		inputSchema := emptyObjectSchema
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("failed to build schema for %s: %w", info.Name, err)
			}
			if inputSchema, err = json.Marshal(js); err != nil {
				return nil, fmt.Errorf("failed to encode schema for %s: %w", info.Name, err)
			}
		}
		mt := mcpgo.NewToolWithRawSchema(info.Name, info.Desc, inputSchema)
		s.mcp.AddTool(mt, invokeHandler(info.Name, t))
		s.tools = append(s.tools, mt)
	}
	return s, nil
}

// Tools 返回已注册工具的描述
func (s *Server) Tools() []mcpgo.Tool {
	return s.tools
}

// Serve 从 r 逐行读取请求并把响应写到 w，直到输入结束或 ctx 取消
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Default().Handler(), slog.LevelError))

	logger.Info(ctx, "mcp server started", "name", s.name, "tools", len(s.tools))
	err := stdio.Listen(ctx, r, w)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	logger.Info(ctx, "mcp input closed")
	return nil
}

// HandleMessage 处理单条 JSON-RPC 消息，通知返回 nil
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcpgo.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

// invokeHandler 把 tools/call 转给 eino 工具；工具自身的失败以 isError 结果返回
func invokeHandler(name string, t tool.InvokableTool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args := "{}"
		if raw := req.GetRawArguments(); raw != nil {
			data, err := json.Marshal(raw)
			if err != nil {
				return mcpgo.NewToolResultError("invalid arguments: " + err.Error()), nil
			}
			args = string(data)
		}

		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      name,
			Type:      "MCPTool",
			Component: components.ComponentOfTool,
		})

		out, err := t.InvokableRun(ctx, args)
		if err != nil {
			logger.Warn(ctx, "mcp tool failed", "tool", name, "error", err.Error())
			return mcpgo.NewToolResultError(errorText(err)), nil
		}
		return mcpgo.NewToolResultText(out), nil
	}
}

// errorText 工具失败时返回给客户端的文本
func errorText(err error) string {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Payload
	}
	return describeError(err)
}
