package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
)

// Artifact is one local file published under RemoteName
type Artifact struct {
	LocalPath  string
	RemoteName string
}

// Publisher uploads output artifacts to the remote store
type Publisher struct {
	client *Client
	logger *slog.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish uploads artifacts in order. The first artifact that still fails after
// all retries aborts the batch; nothing after it is attempted.
func (p *Publisher) Publish(ctx context.Context, artifacts []Artifact) error {
	for i, artifact := range artifacts {
		if err := p.upload(ctx, artifact); err != nil {
			p.logger.Error("FTP upload failed after retries",
				slog.String("local_path", artifact.LocalPath),
				slog.String("remote_name", artifact.RemoteName),
				slog.Int("uploaded", i),
				slog.Int("total", len(artifacts)),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %s (%d of %d uploaded): %v",
				domain.ErrPublishFailure, artifact.RemoteName, i, len(artifacts), err)
		}
	}
	return nil
}

func (p *Publisher) upload(ctx context.Context, artifact Artifact) error {
	return p.client.Session(ctx, "upload "+artifact.RemoteName, func(conn Conn) error {
		file, err := os.Open(artifact.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", artifact.LocalPath, err)
		}
		defer file.Close()

		if err := conn.Stor(artifact.RemoteName, file); err != nil {
			return fmt.Errorf("failed to store %s: %w", artifact.RemoteName, err)
		}

		p.logger.Info("Uploaded artifact",
			slog.String("local_path", artifact.LocalPath),
			slog.String("remote_dir", p.client.config.RemoteDir),
			slog.String("remote_name", artifact.RemoteName),
		)
		return nil
	})
}
