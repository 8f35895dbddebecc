// Package app wires the collaborator clients both binaries share. Every
// collaborator is constructed exactly once per process, here, and passed into
// the stages explicitly; nothing re-initializes on the request path.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mosaicworks/stylize-api/internal/config"
	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/platform/dynamo"
	"github.com/mosaicworks/stylize-api/internal/platform/postgres"
	"github.com/mosaicworks/stylize-api/internal/platform/s3blob"
	"github.com/mosaicworks/stylize-api/internal/platform/secrets"
	"github.com/mosaicworks/stylize-api/internal/platform/sqsqueue"
)

// Collaborators holds the process-lifetime collaborator clients.
type Collaborators struct {
	Tasks   lifecycle.TaskStore
	Blobs   *s3blob.Store
	Handoff *sqsqueue.Queue
	Uploads *sqsqueue.Queue

	// db is non-nil only for the postgres store driver.
	db *sql.DB
}

// Setup bootstraps credentials from the secret store and constructs every
// collaborator client.
func Setup(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Collaborators, error) {
	awsCfg, err := secrets.AWSConfig(ctx, cfg.Secrets, cfg.Storage.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap collaborator credentials: %w", err)
	}

	c := &Collaborators{
		Blobs:   s3blob.New(awsCfg, cfg.Storage),
		Handoff: sqsqueue.New(awsCfg, cfg.Queue.Endpoint, cfg.Queue.HandoffURL),
		Uploads: sqsqueue.New(awsCfg, cfg.Queue.Endpoint, cfg.Queue.UploadsURL),
	}

	switch cfg.Store.Driver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.Store.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open task database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach task database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, err
		}
		c.db = db
		c.Tasks = postgres.NewTaskStore(db)
		log.Info("task store ready", "driver", "postgres")
	case "dynamodb":
		c.Tasks = dynamo.New(awsCfg, cfg.Store)
		log.Info("task store ready", "driver", "dynamodb", "table", cfg.Store.Table)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	return c, nil
}

// Close releases process-lifetime resources.
func (c *Collaborators) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
