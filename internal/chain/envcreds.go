package chain

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvCredentialResolver resolves credentials from <PROVIDER_ID>_API_KEY and
// <PROVIDER_ID>_BASE_URL environment variables (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, and friends). AccountID is accepted but unused: this
// resolver has one set of credentials per provider, not per account.
type EnvCredentialResolver struct{}

func (EnvCredentialResolver) Resolve(_ context.Context, providerID, _ string) (Credentials, error) {
	prefix := strings.ToUpper(strings.ReplaceAll(providerID, "-", "_"))
	apiKey := strings.TrimSpace(os.Getenv(prefix + "_API_KEY"))
	if apiKey == "" {
		return Credentials{}, fmt.Errorf("chain: no %s_API_KEY set for provider %q", prefix, providerID)
	}
	return Credentials{
		APIKey:  apiKey,
		BaseURL: strings.TrimSpace(os.Getenv(prefix + "_BASE_URL")),
	}, nil
}
