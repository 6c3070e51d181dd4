package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/chain"
	"agentcore/internal/events"
	"agentcore/internal/health"
	"agentcore/internal/llm"
	"agentcore/internal/llmerr"
)

type fakeProvider struct {
	calls   int
	fail    int
	failErr error
	reply   llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	f.calls++
	if f.calls <= f.fail {
		return llm.Message{}, f.failErr
	}
	return f.reply, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	msg, err := f.Chat(ctx, msgs, tools, model)
	if err != nil {
		return err
	}
	h.OnDelta(msg.Content)
	return nil
}

type staticCreds struct{}

func (staticCreds) Resolve(ctx context.Context, providerID, accountID string) (chain.Credentials, error) {
	return chain.Credentials{APIKey: "test-key"}, nil
}

func newTestGateway(t *testing.T, providers map[string]Provider) (*Gateway, *events.Sink) {
	t.Helper()
	c := chain.Chain{
		ID:   "c1",
		Name: "test",
		Entries: []chain.Entry{
			{ProviderID: "primary", ModelID: "m1", AccountID: "acct-1"},
			{ProviderID: "secondary", ModelID: "m2", AccountID: "acct-2"},
		},
	}
	store := chain.NewMemoryStore(chain.Chain{ID: chain.BuiltinSmartID, Name: "smart"})
	_, err := store.UpsertChain(context.Background(), c)
	require.NoError(t, err)

	tracker := health.NewTracker()
	resolver := chain.NewResolver(store, tracker, staticCreds{})
	sink := events.NewSink(16)

	factory := func(entry chain.ResolvedEntry) (Provider, error) {
		p, ok := providers[entry.ProviderID]
		if !ok {
			return nil, errors.New("no provider for " + entry.ProviderID)
		}
		return p, nil
	}

	gw := New(resolver, factory, tracker, sink)
	return gw, sink
}

func TestChatSucceedsOnFirstEntry(t *testing.T) {
	primary := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "hi"}}
	gw, _ := newTestGateway(t, map[string]Provider{"primary": primary})

	resp, err := gw.Chat(context.Background(), "c1", []llm.Message{{Role: "user", Content: "hello"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Message.Content)
	require.Equal(t, "primary", resp.ProviderID)
	require.Equal(t, 1, resp.Attempts)
}

func TestChatRetriesTransientErrorWithinEntry(t *testing.T) {
	primary := &fakeProvider{
		fail:    1,
		failErr: &llmerr.Error{Kind: llmerr.ServerError, Message: "boom"},
		reply:   llm.Message{Role: "assistant", Content: "ok"},
	}
	gw, _ := newTestGateway(t, map[string]Provider{"primary": primary})
	gw.WithRetryConfig(RetryConfig{MaxRetries: 3, MaxRetryDuration: 0})
	// A zero MaxRetryDuration would end the retry loop before the first
	// attempt, so keep it generous; the retry still waits
	// SuggestedDelay(ServerError, 0) = 2s before the second call.
	gw.retry = RetryConfig{MaxRetries: 3, MaxRetryDuration: 1 << 30}

	resp, err := gw.Chat(context.Background(), "c1", []llm.Message{{Role: "user", Content: "hello"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Message.Content)
	require.Equal(t, 2, primary.calls)
}

func TestChatFallsOverToNextEntryOnPersistentFailure(t *testing.T) {
	primary := &fakeProvider{fail: 100, failErr: errors.New("internal server error")}
	secondary := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "from secondary"}}
	gw, _ := newTestGateway(t, map[string]Provider{"primary": primary, "secondary": secondary})
	gw.retry = RetryConfig{MaxRetries: 0, MaxRetryDuration: 1 << 30}

	resp, err := gw.Chat(context.Background(), "c1", []llm.Message{{Role: "user", Content: "hello"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "from secondary", resp.Message.Content)
	require.Equal(t, "secondary", resp.ProviderID)
}

func TestChatReturnsClientErrorWithoutFallover(t *testing.T) {
	primary := &fakeProvider{fail: 100, failErr: errors.New("invalid request: bad request")}
	secondary := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "unused"}}
	gw, _ := newTestGateway(t, map[string]Provider{"primary": primary, "secondary": secondary})
	gw.retry = RetryConfig{MaxRetries: 0, MaxRetryDuration: 1 << 30}

	_, err := gw.Chat(context.Background(), "c1", []llm.Message{{Role: "user", Content: "hello"}}, Options{})
	require.Error(t, err)
	require.Equal(t, 0, secondary.calls)
}

func TestChatExhaustsAllEntriesAndSurfacesLastError(t *testing.T) {
	primary := &fakeProvider{fail: 100, failErr: errors.New("internal server error")}
	secondary := &fakeProvider{fail: 100, failErr: errors.New("internal server error")}
	gw, _ := newTestGateway(t, map[string]Provider{"primary": primary, "secondary": secondary})
	gw.retry = RetryConfig{MaxRetries: 0, MaxRetryDuration: 1 << 30}

	_, err := gw.Chat(context.Background(), "c1", []llm.Message{{Role: "user", Content: "hello"}}, Options{})
	require.Error(t, err)
}

func TestClassifyErrorSubstringFallback(t *testing.T) {
	require.Equal(t, llmerr.RateLimited, ClassifyError(errors.New("429 too many requests")))
	require.Equal(t, llmerr.ClientError, ClassifyError(errors.New("400 bad request")))
	require.Equal(t, llmerr.NetworkError, ClassifyError(errors.New("dial tcp: i/o timeout")))
	require.Equal(t, llmerr.IncompatibleModel, ClassifyError(errors.New("model not found")))
}

func TestEstimateUsageFallsBackToCharsOverFour(t *testing.T) {
	in := []llm.Message{{Role: "user", Content: "12345678"}}
	out := llm.Message{Content: "1234"}
	usage := estimateUsage(in, out)
	require.Equal(t, 2, usage.PromptTokens)
	require.Equal(t, 1, usage.CompletionTokens)
	require.True(t, usage.Estimated)
}
