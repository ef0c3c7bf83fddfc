package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/metrics"
)

type requestIDKey struct{}

// RequestID returns the id assigned to the current MCP call, "" outside one.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// callLimiter throttles tools/call per tool name.
type callLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter // tool name -> limiter
}

func newCallLimiter(perSecond float64, burst int) *callLimiter {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &callLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *callLimiter) get(tool string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[tool]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[tool] = limiter
	}
	return limiter
}

// loggingMiddleware tags every request with an id and logs it. Tool calls are
// additionally throttled and counted.
func loggingMiddleware(limiter *callLimiter) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			requestID := uuid.NewString()
			ctx = context.WithValue(ctx, requestIDKey{}, requestID)

			call, isToolCall := req.(*mcp.CallToolRequest)
			if !isToolCall {
				start := time.Now()
				result, err := next(ctx, method, req)
				logging.Debug("MCP request",
					"request_id", requestID,
					"method", method,
					"duration", time.Since(start).String(),
					"error", err,
				)
				return result, err
			}

			tool := call.Params.Name
			if limiter != nil {
				if err := limiter.get(tool).Wait(ctx); err != nil {
					metrics.ToolCallTotals.WithLabelValues(tool, "throttled").Inc()
					logging.Warn("Tool call throttled", "request_id", requestID, "tool", tool, "error", err)
					return nil, fmt.Errorf("rate limit exceeded for %s: %w", tool, err)
				}
			}

			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			outcome := "success"
			switch {
			case err != nil:
				outcome = "error"
			case isErrorResult(result):
				outcome = "tool_error"
			}

			metrics.ToolCallTotals.WithLabelValues(tool, outcome).Inc()
			metrics.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())

			logging.Info("Tool call",
				"request_id", requestID,
				"tool", tool,
				"outcome", outcome,
				"duration", duration.String(),
			)
			if err != nil {
				logging.Error("Tool call failed", "request_id", requestID, "tool", tool, "error", err)
			}
			return result, err
		}
	}
}

func isErrorResult(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}
