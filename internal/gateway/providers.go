package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"agentcore/internal/chain"
)

// CachingProviderFactory memoizes provider clients per (providerID,
// accountID) pair so that repeated Chat calls against the same account
// reuse a single SDK client rather than re-authenticating every turn.
type CachingProviderFactory struct {
	mu      sync.Mutex
	cache   map[string]Provider
	build   func(entry chain.ResolvedEntry) (Provider, error)
	httpCli *http.Client
}

// NewProviderFactory returns a ProviderFactory dispatching on the
// resolved entry's ProviderID to one of the three builtin SDK-backed
// providers. httpClient may be nil to use http.DefaultClient.
func NewProviderFactory(httpClient *http.Client) ProviderFactory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	f := &CachingProviderFactory{
		cache:   make(map[string]Provider),
		httpCli: httpClient,
	}
	f.build = func(entry chain.ResolvedEntry) (Provider, error) {
		switch strings.ToLower(entry.ProviderID) {
		case "anthropic":
			return newAnthropicProvider(entry.Credentials, f.httpCli), nil
		case "openai":
			return newOpenAIProvider(entry.Credentials, f.httpCli), nil
		case "google", "gemini":
			return newGoogleProvider(entry.Credentials, f.httpCli)
		default:
			return nil, fmt.Errorf("gateway: unknown provider id %q", entry.ProviderID)
		}
	}
	return f.get
}

func (f *CachingProviderFactory) get(entry chain.ResolvedEntry) (Provider, error) {
	key := strings.ToLower(entry.ProviderID) + "|" + entry.AccountID
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[key]; ok {
		return p, nil
	}
	p, err := f.build(entry)
	if err != nil {
		return nil, err
	}
	f.cache[key] = p
	return p, nil
}
