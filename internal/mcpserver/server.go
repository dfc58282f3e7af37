package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/dispatcher"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/util"
)

const clientIP = "stdio"

type Dispatcher interface {
	Dispatch(ctx context.Context, call dispatcher.Call) (dispatcher.Result, error)
}

type Catalog interface {
	Names() []string
	Get(name string) (catalog.Tool, bool)
}

// Server exposes every catalog tool over MCP. A stdio session belongs to a
// single customer, identified by the API key given at startup.
type Server struct {
	srv        *mcp.Server
	d          Dispatcher
	credential string
}

func NewServer(d Dispatcher, cat Catalog, credential, version string) *Server {
	s := &Server{
		srv: mcp.NewServer(&mcp.Implementation{
			Name:    "intent-gateway",
			Version: version,
		}, &mcp.ServerOptions{}),
		d:          d,
		credential: credential,
	}

	// All tools are listed; the plan check happens per call so refused
	// calls are audited.
	for _, name := range cat.Names() {
		t, _ := cat.Get(name)
		s.srv.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema(),
		}, s.handler(t.Name))
	}
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.srv }

// Run serves stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Log.Info("mcp: serving on stdio")
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handler(tool string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, argsErr := dispatcher.DecodeArguments(req.Params.Arguments)

		res, err := s.d.Dispatch(ctx, dispatcher.Call{
			RequestID:    util.NewID(),
			Credential:   s.credential,
			Tool:         tool,
			Arguments:    args,
			ArgumentsErr: argsErr,
			ClientIP:     clientIP,
			UserAgent:    "mcp",
		})
		if err != nil {
			var de *dispatcher.Error
			if !errors.As(err, &de) {
				logger.Log.Error("dispatch returned untyped error", zap.String("tool", tool), zap.Error(err))
				de = &dispatcher.Error{Code: dispatcher.CodeExecInvalid, Message: "internal error"}
			}
			return errorResult(de), nil
		}

		text := res.Text
		if res.Truncated {
			text += "\n(result truncated to the first " + strconv.Itoa(res.RowCount) + " rows)"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

func errorResult(e *dispatcher.Error) *mcp.CallToolResult {
	body, _ := json.Marshal(map[string]any{
		"error":     e.Code,
		"message":   e.Message,
		"retryable": e.Retryable,
	})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
}
