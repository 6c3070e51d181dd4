package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agentcore/internal/llm"
)

// Tool is an executable capability the agent can call.
type Tool interface {
	Name() string
	JSONSchema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (any, error)
}

// Registry keeps track of tools and dispatches calls by name.
type Registry interface {
	Schemas() []llm.ToolSchema
	Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error)
	Register(t Tool)
}

// DefaultCallTimeout bounds a single tool invocation, per spec.md §4.10.
const DefaultCallTimeout = 60 * time.Second

type defaultRegistry struct {
	byName  map[string]Tool
	timeout time.Duration
}

// NewRegistry returns a basic in-memory registry with the default
// per-call timeout.
func NewRegistry() Registry {
	return &defaultRegistry{byName: make(map[string]Tool), timeout: DefaultCallTimeout}
}

// NewRegistryWithTimeout is like NewRegistry but allows overriding the
// per-call timeout, mainly for tests.
func NewRegistryWithTimeout(timeout time.Duration) Registry {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &defaultRegistry{byName: make(map[string]Tool), timeout: timeout}
}

func (r *defaultRegistry) Register(t Tool) { r.byName[t.Name()] = t }

func (r *defaultRegistry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.byName))
	for name, t := range r.byName {
		schema := t.JSONSchema()
		out = append(out, llm.ToolSchema{
			Name:        name,
			Description: strFrom(schema["description"]),
			Parameters:  mapFrom(schema["parameters"]),
		})
	}
	return out
}

// Dispatch looks up the named tool, validates the call against its
// declared schema (loosely: a missing required field is reported as a
// tool-side error rather than a crash), and runs it under a timeout with
// panic recovery so a single misbehaving tool cannot take down the
// agent loop.
func (r *defaultRegistry) Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error) {
	t := r.byName[name]
	if t == nil {
		return errorPayload(fmt.Sprintf("tool %q not found", name)), nil
	}

	if err := validateAgainstSchema(t.JSONSchema(), raw); err != nil {
		return errorPayload(err.Error()), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("tool %q panicked: %v", name, p)}
			}
		}()
		val, err := t.Call(callCtx, raw)
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return errorPayload(r.err.Error()), nil
		}
		b, err := json.Marshal(r.val)
		if err != nil {
			return errorPayload(err.Error()), nil
		}
		return b, nil
	case <-callCtx.Done():
		return errorPayload(fmt.Sprintf("tool %q timed out after %s", name, r.timeout)), nil
	}
}

// validateAgainstSchema checks that raw contains every property the
// schema marks as required. Unknown/extra fields are permitted; this is
// intentionally loose and never rejects a well-formed call over
// anything but a missing required field.
func validateAgainstSchema(schema map[string]any, raw json.RawMessage) error {
	params := mapFrom(schema["parameters"])
	if params == nil {
		return nil
	}
	requiredAny, ok := params["required"].([]any)
	if !ok || len(requiredAny) == 0 {
		return nil
	}

	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("invalid arguments JSON: %w", err)
		}
	}

	for _, r := range requiredAny {
		key, _ := r.(string)
		if key == "" {
			continue
		}
		if _, present := args[key]; !present {
			return fmt.Errorf("missing required argument %q", key)
		}
	}
	return nil
}

func errorPayload(msg string) []byte {
	b, _ := json.Marshal(map[string]any{"ok": false, "error": msg})
	return b
}

func strFrom(v any) string         { s, _ := v.(string); return s }
func mapFrom(v any) map[string]any { m, _ := v.(map[string]any); return m }
