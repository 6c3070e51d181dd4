// Package runtimecfg assembles the hierarchical mission runtime's full
// dependency graph from environment variables: chain store, credential
// resolver, provider factory, health tracker, benchmarks/learning/
// pricing, selector, retrieval, and the root NodeConfig. It resolves its
// own small, self-contained set of env vars directly; there is no shared
// Config struct or config loader in this tree (see DESIGN.md).
package runtimecfg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"agentcore/internal/benchmarks"
	"agentcore/internal/budget"
	"agentcore/internal/chain"
	"agentcore/internal/config"
	"agentcore/internal/events"
	"agentcore/internal/gateway"
	"agentcore/internal/health"
	"agentcore/internal/learning"
	"agentcore/internal/mission"
	"agentcore/internal/observability"
	"agentcore/internal/persistence/databases"
	"agentcore/internal/pricing"
	"agentcore/internal/selector"
	"agentcore/internal/tools"
)

// Runtime bundles the assembled mission dependency graph. Most callers
// only need Root (to start a mission); the rest are exposed for a
// cmd/ entrypoint wanting to inspect health, record outcomes, etc.
type Runtime struct {
	Gateway    *gateway.Gateway
	Chains     *chain.MemoryStore
	Health     *health.Tracker
	Benchmarks *benchmarks.Registry
	Learning   learning.Store
	Pricing    *pricing.Catalogue
	Selector   *selector.Selector
	Events     *events.Sink
	Root       func(task string, budgetCents uint64) (*mission.NodeAgent, *mission.AgentTree, *budget.Budget)
}

// Options controls which env-driven behaviors Load enables; callers
// building a Runtime in tests typically leave this zero-valued.
type Options struct {
	// ChainConfigPathEnv overrides the env var naming a YAML chain config
	// file (defaults to AGENTCORE_CHAIN_CONFIG).
	ChainConfigPathEnv string
	// BenchmarksPathEnv overrides the env var naming a benchmarks JSON
	// file (defaults to AGENTCORE_BENCHMARKS_FILE).
	BenchmarksPathEnv string
	// PricingPathEnv overrides the env var naming a pricing catalogue
	// JSON file (defaults to AGENTCORE_PRICING_FILE).
	PricingPathEnv string
}

// LoadDotEnv loads a .env (or example.env) file into the process
// environment if present.
// Load does not call this itself: callers decide whether dotenv
// loading belongs in their entrypoint (a library caller embedding this
// package in a larger process may already have loaded one).
func LoadDotEnv() error {
	if err := godotenv.Load(".env"); err != nil {
		return godotenv.Load("example.env")
	}
	return nil
}

// Load builds a Runtime from environment variables:
//
//   - AGENTCORE_CHAIN_CONFIG: path to a YAML chain.FileConfig (optional;
//     without it, only the builtin smart chain is registered).
//   - AGENTCORE_BENCHMARKS_FILE: path to a benchmarks.LoadFromFile JSON
//     table (optional; without it, the registry starts empty and the
//     selector falls back to learned data / the candidate pool).
//   - AGENTCORE_PRICING_FILE: path to a pricing.LoadFromFile catalogue
//     (optional; without it, pricing.New's built-in table is used).
//   - AGENTCORE_EVENTS_BUFFER: events.Sink buffer size (default 256).
//   - AGENTCORE_MAX_RETRIES / AGENTCORE_MAX_RETRY_SECONDS: gateway retry
//     tuning (defaults from gateway.DefaultRetryConfig).
//
// Per-provider credentials (ANTHROPIC_API_KEY, OPENAI_API_KEY,
// GOOGLE_GEMINI_API_KEY or GEMINI_API_KEY, and their _BASE_URL
// counterparts) are resolved by chain.EnvCredentialResolver at call
// time, not read here.
func Load(opts Options) (*Runtime, error) {
	builtin := chain.Chain{
		ID:   chain.BuiltinSmartID,
		Name: "smart",
		Entries: []chain.Entry{
			{ProviderID: "anthropic", ModelID: "claude-3-5-sonnet", AccountID: "default"},
			{ProviderID: "openai", ModelID: "gpt-4o", AccountID: "default"},
		},
	}

	chainPathEnv := orDefault(opts.ChainConfigPathEnv, "AGENTCORE_CHAIN_CONFIG")
	var chains *chain.MemoryStore
	if path := os.Getenv(chainPathEnv); path != "" {
		loaded, err := chain.LoadFile(path, builtin)
		if err != nil {
			return nil, fmt.Errorf("runtimecfg: loading chain config: %w", err)
		}
		chains = loaded
	} else {
		chains = chain.NewMemoryStore(builtin)
	}

	tracker := health.NewTracker()
	resolver := chain.NewResolver(chains, tracker, chain.EnvCredentialResolver{})
	factory := gateway.NewProviderFactory(observability.NewHTTPClient(nil))

	eventsBuf := envInt("AGENTCORE_EVENTS_BUFFER", 256)
	sink := events.NewSink(eventsBuf)

	gw := gateway.New(resolver, factory, tracker, sink)
	retryCfg := gateway.DefaultRetryConfig()
	if n, err := strconv.Atoi(os.Getenv("AGENTCORE_MAX_RETRIES")); err == nil {
		retryCfg.MaxRetries = n
	}
	if n, err := strconv.Atoi(os.Getenv("AGENTCORE_MAX_RETRY_SECONDS")); err == nil {
		retryCfg.MaxRetryDuration = time.Duration(n) * time.Second
	}
	gw = gw.WithRetryConfig(retryCfg)

	bench := benchmarks.New()
	benchPathEnv := orDefault(opts.BenchmarksPathEnv, "AGENTCORE_BENCHMARKS_FILE")
	if path := os.Getenv(benchPathEnv); path != "" {
		loaded, err := benchmarks.LoadFromFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("runtimecfg: benchmarks file unreadable, using empty registry")
		} else {
			bench = loaded
		}
	}

	prices := pricing.New()
	pricingPathEnv := orDefault(opts.PricingPathEnv, "AGENTCORE_PRICING_FILE")
	if path := os.Getenv(pricingPathEnv); path != "" {
		loaded, err := pricing.LoadFromFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("runtimecfg: pricing file unreadable, using built-in table")
		} else {
			prices = loaded
		}
	}

	learn := learning.NewMemoryStore()
	learnCfg := learning.DefaultConfig()
	estimator := func(modelID string, _ selector.TaskType, complexity float64) uint64 {
		return prices.EstimateCostCents(modelID, complexity)
	}
	sel := selector.New(bench, learn, learnCfg, estimator)

	retriever, err := buildRetriever()
	if err != nil {
		log.Warn().Err(err).Msg("runtimecfg: retrieval backend unavailable, running without retrieval")
	}

	rt := &Runtime{
		Gateway:    gw,
		Chains:     chains,
		Health:     tracker,
		Benchmarks: bench,
		Learning:   learn,
		Pricing:    prices,
		Selector:   sel,
		Events:     sink,
	}

	rt.Root = func(task string, budgetCents uint64) (*mission.NodeAgent, *mission.AgentTree, *budget.Budget) {
		b := budget.NewRoot(budgetCents)
		cfg := mission.NodeConfig{
			Gateway:   gw,
			ChainID:   chain.BuiltinSmartID,
			Selector:  sel,
			NewTools:  func() tools.Registry { return tools.NewRegistry() },
			Sink:      sink,
			Retriever: retriever,
		}
		tree := mission.NewAgentTree()
		return mission.NewRootNodeAgent(mission.NewAgentID(), cfg), tree, b
	}

	return rt, nil
}

// buildRetriever wires up the optional retrieval-context injection step
// (spec.md §4.12 step 1b) from AGENTCORE_VECTOR_BACKEND:
//
//   - "" / "memory": an empty in-process store (never matches; harmless default)
//   - "qdrant": AGENTCORE_QDRANT_URL + AGENTCORE_QDRANT_COLLECTION
//   - "postgres": AGENTCORE_VECTOR_DSN, pgvector-backed
//
// Embedding requests go to AGENTCORE_EMBEDDING_BASE_URL /
// AGENTCORE_EMBEDDING_MODEL / AGENTCORE_EMBEDDING_API_KEY. Without
// AGENTCORE_EMBEDDING_BASE_URL it returns a nil Retriever, and LeafAgent
// construction simply skips the step.
func buildRetriever() (mission.ContextRetriever, error) {
	embedCfg := config.EmbeddingConfig{
		BaseURL: os.Getenv("AGENTCORE_EMBEDDING_BASE_URL"),
		Model:   os.Getenv("AGENTCORE_EMBEDDING_MODEL"),
		APIKey:  os.Getenv("AGENTCORE_EMBEDDING_API_KEY"),
	}
	if embedCfg.BaseURL == "" {
		return nil, nil
	}

	var store databases.VectorStore
	switch backend := strings.ToLower(os.Getenv("AGENTCORE_VECTOR_BACKEND")); backend {
	case "", "memory":
		store = databases.NewMemoryVector()
	case "qdrant":
		url := os.Getenv("AGENTCORE_QDRANT_URL")
		collection := orDefault(os.Getenv("AGENTCORE_QDRANT_COLLECTION"), "agentcore")
		s, err := databases.NewQdrantVector(url, collection, embedCfg.Dimensions, "cosine")
		if err != nil {
			return nil, fmt.Errorf("runtimecfg: connecting to qdrant: %w", err)
		}
		store = s
	case "postgres", "pgvector":
		dsn := os.Getenv("AGENTCORE_VECTOR_DSN")
		pool, err := databases.OpenPool(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("runtimecfg: connecting to postgres vector store: %w", err)
		}
		store = databases.NewPostgresVector(pool, embedCfg.Dimensions, "cosine")
	default:
		return nil, fmt.Errorf("runtimecfg: unsupported AGENTCORE_VECTOR_BACKEND %q", backend)
	}

	return mission.NewVectorRetriever(store, embedCfg, envInt("AGENTCORE_RETRIEVAL_TOP_K", 5)), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
