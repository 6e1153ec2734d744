// Package firestore backs the remote document store with Cloud Firestore.
package firestore

import (
	"context"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// ClientOptions returns the credential options for Google clients. An empty
// credentials file falls back to application default credentials.
func ClientOptions(cfg domain.RemoteConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

type Client struct {
	*firestore.Client
	ProjectID string
}

func NewClient(ctx context.Context, cfg domain.RemoteConfig, log logger.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("remote.project_id is required for the firestore backend")
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, ClientOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create firestore client")
	}

	log.Info().Str("module", "firestore").Str("project", cfg.ProjectID).Msg("firestore connected")

	return &Client{Client: client, ProjectID: cfg.ProjectID}, nil
}

// Ping lists collections since Firestore has no ping call.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("firestore client is nil")
	}
	if _, err := c.Collections(ctx).GetAll(); err != nil {
		return errors.Wrap(err, "firestore ping failed")
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
