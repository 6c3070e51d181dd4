// Package chain stores named model chains — ordered (provider, model,
// account) triples to try for a chat call — and resolves a chain into
// health-filtered, credential-enriched entries at call time.
package chain

import (
	"context"
	"errors"
	"fmt"

	"agentcore/internal/health"
)

// BuiltinSmartID is the name of the always-present, undeletable builtin
// chain.
const BuiltinSmartID = "builtin/smart"

// Entry is one (provider, model, account) candidate within a chain.
type Entry struct {
	ProviderID string `json:"providerId" yaml:"provider_id"`
	ModelID    string `json:"modelId" yaml:"model_id"`
	AccountID  string `json:"accountId" yaml:"account_id"`
}

// Chain is a named, ordered list of candidate entries.
type Chain struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Entries   []Entry `json:"entries" yaml:"entries"`
	IsDefault bool    `json:"isDefault" yaml:"is_default"`
}

// Credentials resolved for one chain entry.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// ResolvedEntry is a chain Entry enriched with credentials, ready to hand
// to the gateway.
type ResolvedEntry struct {
	Entry
	Credentials
}

// CredentialResolver looks up credentials for a (provider, account) pair.
// EnvCredentialResolver is the implementation in this package.
type CredentialResolver interface {
	Resolve(ctx context.Context, providerID, accountID string) (Credentials, error)
}

// ErrChainNotFound is returned when a chain id is unknown to the store.
var ErrChainNotFound = errors.New("chain: not found")

// ErrBuiltinUndeletable is returned when deleting the builtin chain is attempted.
var ErrBuiltinUndeletable = errors.New("chain: builtin/smart cannot be deleted")

// Store is the persistence capability boundary for chains: upsert, get,
// list, delete. No SQL dialect or serialization format is dictated;
// MemoryStore below is the in-memory implementation.
type Store interface {
	UpsertChain(ctx context.Context, c Chain) (Chain, error)
	GetChain(ctx context.Context, id string) (Chain, bool, error)
	ListChains(ctx context.Context) ([]Chain, error)
	DeleteChain(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store, seeded with the builtin chain.
type MemoryStore struct {
	chains map[string]Chain
}

// NewMemoryStore returns a MemoryStore seeded with builtin/smart.
func NewMemoryStore(builtin Chain) *MemoryStore {
	builtin.ID = BuiltinSmartID
	builtin.IsDefault = true
	return &MemoryStore{chains: map[string]Chain{BuiltinSmartID: builtin}}
}

func (s *MemoryStore) UpsertChain(_ context.Context, c Chain) (Chain, error) {
	if c.ID == "" {
		return Chain{}, fmt.Errorf("chain: id is required")
	}
	s.chains[c.ID] = c
	return c, nil
}

func (s *MemoryStore) GetChain(_ context.Context, id string) (Chain, bool, error) {
	c, ok := s.chains[id]
	return c, ok, nil
}

func (s *MemoryStore) ListChains(_ context.Context) ([]Chain, error) {
	out := make([]Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) DeleteChain(_ context.Context, id string) error {
	if id == BuiltinSmartID {
		return ErrBuiltinUndeletable
	}
	if _, ok := s.chains[id]; !ok {
		return ErrChainNotFound
	}
	delete(s.chains, id)
	return nil
}

// Resolver expands a chain into an ordered list of health-filtered,
// credential-resolved entries.
type Resolver struct {
	store       Store
	health      *health.Tracker
	credentials CredentialResolver
}

// NewResolver constructs a Resolver over the given store, health tracker,
// and credential resolver.
func NewResolver(store Store, tracker *health.Tracker, creds CredentialResolver) *Resolver {
	return &Resolver{store: store, health: tracker, credentials: creds}
}

// Resolve expands the named chain, dropping entries whose account is
// currently in cooldown and preserving the declared order of survivors.
// An unknown chain id returns an error wrapping ErrChainNotFound. An
// empty result (every entry cooled or lacking credentials) is not an
// error here; callers (LlmGateway) must surface a distinct ChainError
// when they observe zero entries.
func (r *Resolver) Resolve(ctx context.Context, chainID string) ([]ResolvedEntry, error) {
	c, ok, err := r.store.GetChain(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: get %q: %w", chainID, err)
	}
	if !ok {
		return nil, fmt.Errorf("chain: %q: %w", chainID, ErrChainNotFound)
	}

	resolved := make([]ResolvedEntry, 0, len(c.Entries))
	for _, e := range c.Entries {
		if r.health != nil && !r.health.IsCool(e.AccountID) {
			continue
		}
		creds := Credentials{}
		if r.credentials != nil {
			creds, err = r.credentials.Resolve(ctx, e.ProviderID, e.AccountID)
			if err != nil {
				continue
			}
		}
		resolved = append(resolved, ResolvedEntry{Entry: e, Credentials: creds})
	}
	return resolved, nil
}
