package tools

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"agentcore/internal/llm"
)

// NewRegistryWithLogging returns a registry that logs every dispatch at
// info level (warn when it returns an error), with args and result when
// logPayloads is set and the tool name only otherwise.
func NewRegistryWithLogging(logPayloads bool) Registry {
	return NewRecordingRegistry(NewRegistry(), func(e DispatchEvent) {
		evt := log.Info()
		if e.Err != nil {
			evt = log.Warn()
		}
		if logPayloads {
			evt.Str("tool", e.Name).RawJSON("args", e.Args).RawJSON("result", e.Payload).Msg("tool_dispatch")
			return
		}
		evt.Str("tool", e.Name).Msg("tool_dispatch")
	})
}

// DispatchEvent captures a single tool dispatch invocation and result.
type DispatchEvent struct {
	Name    string
	Args    json.RawMessage
	Payload []byte
	Err     error
}

type recordingRegistry struct {
	base Registry
	on   func(DispatchEvent)
}

// NewRecordingRegistry wraps an existing Registry and calls on for each Dispatch.
func NewRecordingRegistry(base Registry, on func(DispatchEvent)) Registry {
	if base == nil {
		base = NewRegistry()
	}
	return &recordingRegistry{base: base, on: on}
}

func (r *recordingRegistry) Register(t Tool)           { r.base.Register(t) }
func (r *recordingRegistry) Schemas() []llm.ToolSchema { return r.base.Schemas() }

// We need to mirror Schemas returning []llm.ToolSchema; to avoid import cycle,
// delegate directly since base implements it. This adapter method signature is
// resolved by the interface at compile time.
func (r *recordingRegistry) Dispatch(ctx context.Context, name string, raw json.RawMessage) ([]byte, error) {
	payload, err := r.base.Dispatch(ctx, name, raw)
	if r.on != nil {
		r.on(DispatchEvent{Name: name, Args: raw, Payload: payload, Err: err})
	}
	return payload, err
}
