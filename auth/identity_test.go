package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-core/domain"
)

func TestProvider_RoundTrip(t *testing.T) {
	req := require.New(t)
	provider := NewProvider([]byte("test-secret"), time.Hour)

	token, err := provider.GenerateToken("alice")
	req.NoError(err)
	req.NotEmpty(token)

	user, err := provider.Identify(token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), user)
}

func TestProvider_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	signer := NewProvider([]byte("secret-a"), time.Hour)
	verifier := NewProvider([]byte("secret-b"), time.Hour)

	token, err := signer.GenerateToken("alice")
	req.NoError(err)

	_, err = verifier.Identify(token)
	req.Error(err)
}

func TestProvider_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	provider := NewProvider([]byte("test-secret"), -time.Minute)

	token, err := provider.GenerateToken("alice")
	req.NoError(err)

	_, err = provider.Identify(token)
	req.Error(err)
}

func TestProvider_RejectsGarbage(t *testing.T) {
	req := require.New(t)
	provider := NewProvider([]byte("test-secret"), time.Hour)

	_, err := provider.Identify("not-a-token")
	req.Error(err)
}
