// Package gateway implements the normalised chat contract that sits
// between model selection and the concrete provider SDKs: a single
// Chat call resolves a chain, retries transiently-failing entries, and
// falls over to the next chain entry on persistent failure.
package gateway

import (
	"context"
	"errors"
	"time"

	"agentcore/internal/chain"
	"agentcore/internal/events"
	"agentcore/internal/health"
	"agentcore/internal/llm"
	"agentcore/internal/llmerr"
	"agentcore/internal/observability"
)

// FinishReason mirrors the provider-agnostic reasons a turn can end.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Usage carries token accounting, estimated when the provider omits it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// ChatResponse is the gateway's normalised turn result.
type ChatResponse struct {
	Message      llm.Message
	FinishReason FinishReason
	Usage        Usage
	ProviderID   string
	ModelID      string
	AccountID    string
	Attempts     int
}

// Options configures a single Chat call.
type Options struct {
	Tools []llm.ToolSchema
}

// Provider is the per-backend transport the gateway dispatches to. It is
// satisfied directly by agentcore/internal/llm.Provider.
type Provider = llm.Provider

// ProviderFactory builds (or returns a cached) Provider for a resolved
// chain entry's provider id and credentials.
type ProviderFactory func(entry chain.ResolvedEntry) (Provider, error)

// RetryConfig controls the inner per-entry retry loop.
type RetryConfig struct {
	MaxRetries       int
	MaxRetryDuration time.Duration
}

// DefaultRetryConfig matches spec.md §4.5's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, MaxRetryDuration: 120 * time.Second}
}

// Gateway wraps chain resolution and provider dispatch behind the
// normalised Chat contract.
type Gateway struct {
	resolver    *chain.Resolver
	factory     ProviderFactory
	health      *health.Tracker
	sink        *events.Sink
	retry       RetryConfig
	classifyErr func(err error) llmerr.Kind
}

// New constructs a Gateway. sink may be nil to disable event emission.
func New(resolver *chain.Resolver, factory ProviderFactory, tracker *health.Tracker, sink *events.Sink) *Gateway {
	return &Gateway{
		resolver:    resolver,
		factory:     factory,
		health:      tracker,
		sink:        sink,
		retry:       DefaultRetryConfig(),
		classifyErr: ClassifyError,
	}
}

// WithRetryConfig overrides the default retry configuration.
func (g *Gateway) WithRetryConfig(cfg RetryConfig) *Gateway {
	g.retry = cfg
	return g
}

// ErrChainExhausted is returned when every chain entry fails.
var ErrChainExhausted = errors.New("gateway: all chain entries exhausted")

// Chat dispatches messages through chainID, retrying within an entry and
// falling over to the next entry on persistent failure. The chain is
// re-resolved at the top of every outer-loop iteration so that health
// and cooldown state discovered mid-call is reflected immediately. Each
// entry is tried at most once per call.
func (g *Gateway) Chat(ctx context.Context, chainID string, messages []llm.Message, opts Options) (ChatResponse, error) {
	log := observability.LoggerWithTrace(ctx)
	var lastErr error
	attempts := 0
	tried := make(map[chain.Entry]bool)

	for {
		entries, err := g.resolver.Resolve(ctx, chainID)
		if err != nil {
			return ChatResponse{}, err
		}
		var entry chain.ResolvedEntry
		found := false
		for _, e := range entries {
			if !tried[e.Entry] {
				entry, found = e, true
				break
			}
		}
		if !found {
			if lastErr != nil {
				return ChatResponse{}, lastErr
			}
			return ChatResponse{}, ErrChainExhausted
		}
		tried[entry.Entry] = true
		resp, attemptCount, err := g.tryEntry(ctx, entry, messages, opts)
		attempts += attemptCount
		if err == nil {
			resp.Attempts = attempts
			if g.health != nil {
				g.health.RecordSuccess(entry.AccountID)
			}
			return resp, nil
		}

		lastErr = err
		kind := g.classifyErr(err)

		if kind == llmerr.ClientError || kind == llmerr.ParseError {
			// Not retryable and not a fallover condition per spec.md §4.5:
			// these are request-shape problems that won't improve by
			// switching providers.
			return ChatResponse{}, err
		}

		if g.health != nil {
			g.health.RecordFailure(entry.AccountID, err.Error())
		}
		g.emit(entry, events.FallbackEvent, err)

		log.Warn().Str("provider", entry.ProviderID).Str("model", entry.ModelID).Err(err).Msg("gateway_fallback")
		// loop: re-resolve and advance past the now-unhealthy entry.
	}
}

// tryEntry runs the inner retry loop for a single chain entry.
func (g *Gateway) tryEntry(ctx context.Context, entry chain.ResolvedEntry, messages []llm.Message, opts Options) (ChatResponse, int, error) {
	provider, err := g.factory(entry)
	if err != nil {
		return ChatResponse{}, 0, err
	}

	deadline := time.Now().Add(g.retry.MaxRetryDuration)
	var lastErr error

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		msg, err := provider.Chat(ctx, messages, opts.Tools, entry.ModelID)
		if err == nil {
			return ChatResponse{
				Message:      msg,
				FinishReason: finishReason(msg),
				Usage:        estimateUsage(messages, msg),
				ProviderID:   entry.ProviderID,
				ModelID:      entry.ModelID,
				AccountID:    entry.AccountID,
			}, attempt + 1, nil
		}

		lastErr = err
		kind := g.classifyErr(err)

		if kind == llmerr.IncompatibleModel {
			// Abort the inner loop immediately and let the outer loop advance.
			return ChatResponse{}, attempt + 1, err
		}

		if !llmerr.DefaultRetryConfig().ShouldRetry(kind) || attempt == g.retry.MaxRetries {
			return ChatResponse{}, attempt + 1, err
		}

		delay := llmerr.SuggestedDelay(kind, attempt, nil)
		select {
		case <-ctx.Done():
			return ChatResponse{}, attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}

	return ChatResponse{}, g.retry.MaxRetries + 1, lastErr
}

func (g *Gateway) emit(entry chain.ResolvedEntry, typ events.Type, err error) {
	if g.sink == nil {
		return
	}
	g.sink.TrySend(events.Event{
		Type:    typ,
		AgentID: entry.AccountID,
		Seq:     g.sink.NextSeq(),
		At:      time.Now(),
		Payload: map[string]string{"provider": entry.ProviderID, "model": entry.ModelID, "error": err.Error()},
	})
}

func finishReason(msg llm.Message) FinishReason {
	if len(msg.ToolCalls) > 0 {
		return FinishToolCalls
	}
	return FinishStop
}

// estimateUsage approximates token usage as chars/4 per message when the
// concrete provider leaves it unset, per spec.md §4.5.
func estimateUsage(in []llm.Message, out llm.Message) Usage {
	var promptChars int
	for _, m := range in {
		promptChars += len(m.Content)
	}
	completionChars := len(out.Content)
	prompt := promptChars / 4
	completion := completionChars / 4
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion, Estimated: true}
}
