package valkey

import (
	"testing"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_Unreachable(t *testing.T) {
	svc, err := NewService(domain.ValkeyConfig{Address: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Nil(t, svc)
}

func TestService_CloseWithoutClient(t *testing.T) {
	assert.NotPanics(t, (&Service{}).Close)
}
