package commissioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbweber/homelab/rack/internal/datastore"
	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/metrics"
	"github.com/jbweber/homelab/rack/internal/repository"
)

// Options tune an Ingester. Zero values select defaults.
type Options struct {
	MinBlockDeviceSize int64
	Logger             *slog.Logger
}

// Ingester stores commissioning results and runs their hooks.
type Ingester struct {
	ds       *datastore.Datastore
	registry *Registry
	opts     Options
}

// NewIngester returns an ingester dispatching through registry.
func NewIngester(ds *datastore.Datastore, registry *Registry, opts Options) *Ingester {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if opts.MinBlockDeviceSize <= 0 {
		opts.MinBlockDeviceSize = DefaultMinBlockDeviceSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{ds: ds, registry: registry, opts: opts}
}

// Ingest records output and exit status of scriptName for the node and
// reconciles it, all in one transaction. Results for scripts without a hook
// are stored only. An unknown node yields repository.ErrNotFound.
func (i *Ingester) Ingest(ctx context.Context, systemID, scriptName string, output []byte, exitStatus int) error {
	logger := i.opts.Logger.With("node", systemID, "script", scriptName)

	err := i.ds.Transact(ctx, func(repos *repository.Repositories) error {
		node, err := repos.Nodes.FindBySystemID(ctx, systemID)
		if err != nil {
			return fmt.Errorf("node %s: %w", systemID, err)
		}

		_, err = repos.Results.Save(ctx, domain.NodeResult{
			NodeID:       node.ID,
			Name:         scriptName,
			ScriptResult: exitStatus,
			Data:         output,
		})
		if err != nil {
			return err
		}

		hook, ok := i.registry.Lookup(scriptName)
		if !ok {
			return nil
		}
		env := &Env{
			Repos:              repos,
			Logger:             logger,
			MinBlockDeviceSize: i.opts.MinBlockDeviceSize,
		}
		return hook(ctx, env, &node, output, exitStatus)
	})

	switch {
	case err == nil:
		metrics.IngestionsTotal.WithLabelValues(scriptName, "stored").Inc()
		logger.DebugContext(ctx, "ingested commissioning result", "exit_status", exitStatus, "bytes", len(output))
	case errors.Is(err, repository.ErrNotFound):
		metrics.IngestionsTotal.WithLabelValues(scriptName, "unknown_node").Inc()
	default:
		metrics.IngestionsTotal.WithLabelValues(scriptName, "error").Inc()
		logger.ErrorContext(ctx, "failed to ingest commissioning result", "error", err)
	}
	return err
}
