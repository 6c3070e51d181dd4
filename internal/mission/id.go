// Package mission implements the hierarchical agent tree: a NodeAgent
// that decides whether to split a task or hand it to a LeafAgent, and a
// LeafAgent that drives the tool-calling loop against the LlmGateway.
package mission

import "github.com/google/uuid"

// AgentID uniquely identifies a node within an AgentTree.
type AgentID string

// NewAgentID mints a fresh random agent identifier.
func NewAgentID() AgentID {
	return AgentID(uuid.NewString())
}
