package firestore

import (
	"context"
	"testing"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "no such document")))
	assert.False(t, isNotFound(status.Error(codes.Unavailable, "down")))
	assert.False(t, isNotFound(errors.New("plain")))
}

func TestDocumentRepo_NilClient(t *testing.T) {
	repo := NewDocumentRepo(logger.Mock(), nil)
	ctx := context.Background()

	_, err := repo.Read(ctx, domain.CollectionUsers, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firestore client is nil")

	err = repo.Write(ctx, domain.CollectionCarts, "u1", domain.Document{"cart": []any{}})
	require.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(domain.RemoteConfig{}))
	assert.Len(t, ClientOptions(domain.RemoteConfig{CredentialsFile: "/etc/sa.json"}), 1)
}

func TestNewClient_RequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), domain.RemoteConfig{Backend: "firestore"}, logger.Mock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")
}

func TestClient_NilSafe(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
