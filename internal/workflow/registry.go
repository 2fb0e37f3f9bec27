// Package workflow implements the multi-agent claim processing pipeline.
//
// A claim flows through five agents: intake validates the submission, then
// eligibility, clinical review, and fraud detection run concurrently, and
// adjudication synthesizes their findings into a final decision. Each agent
// works exclusively through registered tools so every action is captured in
// the audit trail.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MedLedger/ClaimPipe/internal/models"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 10 * time.Second

// ToolFunc is the signature of a registered agent tool. The returned string is
// the tool's observable result; an error marks the invocation as failed.
type ToolFunc func(ctx context.Context, params map[string]interface{}) (string, error)

// ToolRegistry holds the tools available to workflow agents.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[models.ToolName]ToolFunc
	timeout time.Duration
}

// RegistryOpts holds configuration options for a tool registry.
type RegistryOpts struct {
	Timeout time.Duration
}

// RegistryOption configures tool registry creation.
type RegistryOption func(*RegistryOpts)

// WithToolTimeout sets the per-invocation timeout.
func WithToolTimeout(timeout time.Duration) RegistryOption {
	return func(o *RegistryOpts) { o.Timeout = timeout }
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry(opts ...RegistryOption) *ToolRegistry {
	var cfg RegistryOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	return &ToolRegistry{
		tools:   make(map[models.ToolName]ToolFunc),
		timeout: cfg.Timeout,
	}
}

// Register adds a tool under the given name. Registering the same name twice
// is an error.
func (r *ToolRegistry) Register(name models.ToolName, fn ToolFunc) error {
	if fn == nil {
		return fmt.Errorf("tool %s: nil function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = fn
	return nil
}

// Registered reports whether a tool name is registered.
func (r *ToolRegistry) Registered(name models.ToolName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Invoke executes a registered tool and returns its result text alongside a
// usage record for the audit trail. Invocations are bounded by the registry
// timeout, and a panicking tool is converted into a failed usage record
// rather than taking down the workflow.
func (r *ToolRegistry) Invoke(ctx context.Context, name models.ToolName, params map[string]interface{}) (string, models.ToolUsage) {
	usage := models.ToolUsage{
		ToolName:   name,
		Parameters: params,
		Timestamp:  time.Now(),
	}

	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("ToolRegistry.Invoke: tool not found", "tool", name)
		usage.Result = "Tool not found"
		return fmt.Sprintf("ERROR: Tool %s not found", name), usage
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := invokeSafely(ctx, fn, params)
	if err != nil {
		slog.Error("ToolRegistry.Invoke: tool failed", "tool", name, "error", err)
		usage.Result = fmt.Sprintf("Error: %v", err)
		return fmt.Sprintf("ERROR: %v", err), usage
	}

	usage.Result = result
	usage.Success = true
	return result, usage
}

// invokeSafely runs a tool function, converting panics into errors.
func invokeSafely(ctx context.Context, fn ToolFunc, params map[string]interface{}) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn(ctx, params)
}
