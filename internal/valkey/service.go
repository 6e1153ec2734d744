package valkey

import (
	"context"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"

	"github.com/pkg/errors"
	"github.com/valkey-io/valkey-go"
)

// Service holds the Valkey client.
type Service struct {
	client valkey.Client
	config domain.ValkeyConfig
}

// NewService connects and pings the server.
func NewService(cfg domain.ValkeyConfig) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to valkey")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping valkey")
	}

	return &Service{client: client, config: cfg}, nil
}

func (s *Service) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *Service) GetClient() valkey.Client {
	return s.client
}
