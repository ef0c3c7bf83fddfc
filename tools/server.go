// Package tools exposes the lookup service over the Model Context Protocol:
// nine read-only tools, the sukl:// resources and three prompt templates.
package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/giygas/sukl-mcp/interfaces"
	"github.com/giygas/sukl-mcp/lookup"
)

const ServerName = "sukl-mcp"

const defaultCallsPerSecond = 50

// Options configures the MCP server.
type Options struct {
	Version string
	// CallsPerSecond throttles tools/call per tool; 0 means the default of 50
	CallsPerSecond float64
	Burst          int
}

// NewServer builds the MCP server with every tool, resource and prompt registered.
func NewServer(svc *lookup.Service, health interfaces.HealthChecker, opts Options) *mcp.Server {
	if opts.Version == "" {
		opts.Version = svc.Version()
	}
	if opts.CallsPerSecond <= 0 {
		opts.CallsPerSecond = defaultCallsPerSecond
	}

	s := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: opts.Version}, nil)
	s.AddReceivingMiddleware(loggingMiddleware(newCallLimiter(opts.CallsPerSecond, opts.Burst)))

	registerTools(s, svc)
	registerResources(s, svc, health)
	registerPrompts(s)
	return s
}
