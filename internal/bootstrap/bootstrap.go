// Package bootstrap wires configuration to concrete drivers and hands
// the assembled use cases to the entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkov/intel-workbench/internal/config"
	"github.com/avolkov/intel-workbench/internal/core/ports"
	"github.com/avolkov/intel-workbench/internal/core/usecase"
	"github.com/avolkov/intel-workbench/internal/infrastructure/extractor"
	memoryqueue "github.com/avolkov/intel-workbench/internal/infrastructure/queue/memory"
	natsqueue "github.com/avolkov/intel-workbench/internal/infrastructure/queue/nats"
	"github.com/avolkov/intel-workbench/internal/infrastructure/repository/jsonfile"
	"github.com/avolkov/intel-workbench/internal/infrastructure/repository/postgres"
	"github.com/avolkov/intel-workbench/internal/infrastructure/resilience"
	"github.com/avolkov/intel-workbench/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Docs  ports.DocumentStore

	AuthUC     ports.Authenticator
	TasksUC    ports.TaskRegistry
	BriefUC    ports.BriefSynthesizer
	EvidenceUC ports.EvidenceService
	ProcessUC  ports.EvidenceProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	var (
		users    ports.UserStore
		sessions ports.SessionStore
		tasks    ports.TaskStore
		docs     ports.DocumentStore
		closeFns []func()
	)

	switch cfg.StoreDriver {
	case "jsonfile":
		store, err := jsonfile.Open(cfg.JSONStorePath)
		if err != nil {
			return nil, fmt.Errorf("open jsonfile store: %w", err)
		}
		users, sessions, tasks, docs = store, store, store, store
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		users = postgres.NewUserRepository(db)
		sessions = postgres.NewSessionRepository(db)
		tasks = postgres.NewTaskRepository(db)
		docs = postgres.NewDocumentRepository(db)
		closeFns = append(closeFns, func() { _ = db.Close() })
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	// The simulated ingestion delay lives in exactly one place. The
	// memory driver carries it in the dispatch timer so a delete can
	// cancel the pending transition; with NATS the worker waits it out
	// context-aware instead.
	var queue ports.MessageQueue
	processDelay := time.Duration(0)
	switch cfg.QueueDriver {
	case "memory":
		queue = memoryqueue.New(cfg.IngestDelay)
	case "nats":
		nq, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = nq
		processDelay = cfg.IngestDelay
		closeFns = append(closeFns, nq.Close)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}

	// One lock registry across all write paths: rename, invoke and
	// upload against the same user serialize with each other.
	locks := usecase.NewUserLocks()

	authUC := usecase.NewAuthUseCase(users, sessions, cfg.SessionTTL)
	tasksUC := usecase.NewTaskRegistryUseCase(tasks, users, locks)
	briefUC := usecase.NewBriefUseCase(tasks, users, docs, locks)
	evidenceUC := usecase.NewEvidenceUseCase(docs, storage, queue, users, locks)
	processUC := usecase.NewProcessEvidenceUseCase(docs, extractor.New(storage), processDelay)

	return &App{
		Config: cfg,
		Queue:  queue,
		Docs:   docs,

		AuthUC:     authUC,
		TasksUC:    tasksUC,
		BriefUC:    briefUC,
		EvidenceUC: evidenceUC,
		ProcessUC:  processUC,

		closeFn: func() {
			for i := len(closeFns) - 1; i >= 0; i-- {
				closeFns[i]()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
