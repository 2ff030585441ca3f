package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/cascade/pkg/persistence"
	"github.com/dukex/cascade/pkg/persistence/file"
	"github.com/dukex/cascade/pkg/persistence/postgresql"
	"github.com/dukex/cascade/pkg/persistence/redisqueue"
)

// NewPersistence selects the persistence gateway by the URL scheme:
// postgres:// runs on PostgreSQL, anything else is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err))
		}

		return persist
	default:
		return file.NewPersistence(databaseURL)
	}
}

// queueOverride swaps the queue repository of a persistence gateway while
// every other repository keeps its backend.
type queueOverride struct {
	persistence.Persistence

	queue  persistence.QueueRepository
	closer func() error
}

func (p *queueOverride) QueueRepository() persistence.QueueRepository {
	return p.queue
}

func (p *queueOverride) Close(ctx context.Context) error {
	if err := p.closer(); err != nil {
		return err
	}

	return p.Persistence.Close(ctx)
}

// WithQueue replaces the gateway's queue with a dedicated backend when a
// queue URL is configured. An empty URL keeps the gateway's own queue;
// redis:// mounts the Redis queue repository.
func WithQueue(ctx context.Context, logger *slog.Logger, base persistence.Persistence, queueURL string) persistence.Persistence {
	if queueURL == "" {
		return base
	}

	switch {
	case strings.HasPrefix(queueURL, "redis://"), strings.HasPrefix(queueURL, "rediss://"):
		queue, err := redisqueue.NewQueue(ctx, logger, queueURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize Redis queue: %w", err))
		}

		return &queueOverride{Persistence: base, queue: queue, closer: queue.Close}
	default:
		panic("Unsupported queue URL: " + queueURL)
	}
}
