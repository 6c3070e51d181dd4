package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvCredentialResolverResolvesByProviderPrefix(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "https://example.test/v1")

	creds, err := EnvCredentialResolver{}.Resolve(context.Background(), "openai", "acct-1")
	require.NoError(t, err)
	require.Equal(t, "sk-test", creds.APIKey)
	require.Equal(t, "https://example.test/v1", creds.BaseURL)
}

func TestEnvCredentialResolverErrorsWhenUnset(t *testing.T) {
	_, err := EnvCredentialResolver{}.Resolve(context.Background(), "nonexistent-provider", "acct-1")
	require.Error(t, err)
}
