package canvasflow

import (
	"github.com/juju/errors"

	"github.com/warriorguo/canvasflow/runtime"
	"github.com/warriorguo/canvasflow/store"
	"github.com/warriorguo/canvasflow/store/mem"
	"github.com/warriorguo/canvasflow/store/postgres"
	"github.com/warriorguo/canvasflow/types"
)

// NewOrchestrator creates an orchestrator driving graph with the given options
func NewOrchestrator(graph types.Graph, completer types.ChatCompleter, opts ...types.Option) (types.Orchestrator, error) {
	if graph == nil {
		return nil, errors.NotValidf("nil graph")
	}
	options := types.NewOptions()
	for _, opt := range opts {
		opt(options)
	}

	s, err := newRecordStore(options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return runtime.NewOrchestrator(graph, completer, s, options), nil
}

func newRecordStore(options *types.Options) (store.Store, error) {
	// PostgresConfig takes precedence over MemStore
	if options.PostgresConfig != nil {
		pgConfig := &postgres.Config{
			Host:     options.PostgresConfig.Host,
			Port:     options.PostgresConfig.Port,
			User:     options.PostgresConfig.User,
			Password: options.PostgresConfig.Password,
			Database: options.PostgresConfig.Database,
			SSLMode:  options.PostgresConfig.SSLMode,
		}

		s, err := postgres.NewPostgresStore(options.Ctx, pgConfig)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
		return s, nil
	}
	// Default to mem store if not specified
	return mem.NewMemStore(), nil
}
