// Package bootstrap wires configuration into the runnable application
// graph shared by the api, worker, and CLI entry points.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trupharma/drug-safety-rag/internal/config"
	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
	"github.com/trupharma/drug-safety-rag/internal/core/usecase"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/chunking"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/index"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/llm/gemini"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/provider/openfda"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/provider/rxnorm"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/repository/postgres"
	natsq "github.com/trupharma/drug-safety-rag/internal/infrastructure/telemetry/nats"
)

type App struct {
	Config config.Config

	AskService        ports.SafetyQueryService
	Interactions      ports.InteractionReader
	Queue             *natsq.Queue
	Repo              *postgres.InteractionRepository
	GenerationEnabled bool

	closeFn func()
}

type Options struct {
	// WithStore controls whether Postgres is opened and the schema
	// ensured. The CLI ask path runs without it.
	WithStore bool
	// WithQueue controls whether the NATS telemetry channel is connected.
	WithQueue bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}

	var closers []func()
	if opts.WithStore {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		app.Repo = postgres.NewInteractionRepository(db)
		if err := app.Repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Interactions = app.Repo
	}

	var sink ports.TelemetrySink
	if opts.WithQueue {
		queue, err := natsq.New(cfg.NATSURL, cfg.NATSSubject, natsq.Options{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("init telemetry queue: %w", err)
		}
		closers = append(closers, queue.Close)
		app.Queue = queue
		sink = queue
	}

	policy, err := cfg.LoadFieldPolicy()
	if err != nil {
		return nil, err
	}
	client := openfda.NewClient(openfda.ClientConfig{
		LabelURL:      cfg.OpenFDALabelURL,
		EventURL:      cfg.OpenFDAEventURL,
		NDCURL:        cfg.OpenFDANDCURL,
		APIKey:        cfg.OpenFDAAPIKey,
		RatePerMinute: cfg.OpenFDARatePerMinute,
	})
	var resolver ports.DrugResolver
	if cfg.RxNormEnabled {
		resolver = rxnorm.NewResolver(rxnorm.NewClient(rxnorm.Config{
			BaseURL: cfg.RxNormBaseURL,
		}), logger)
	}
	provider := openfda.NewProvider(client, openfda.ProviderConfig{
		Policy:       policy,
		PageLimit:    cfg.OpenFDAPageLimit,
		MaxRecords:   cfg.OpenFDAMaxRecords,
		WithEvents:   cfg.OpenFDAWithEvents,
		WithProducts: cfg.OpenFDAWithProducts,
		Resolver:     resolver,
	}, logger)

	splitter, err := chunking.NewSplitter(cfg.WordsPerChunk, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	var synthesizer *usecase.AnswerSynthesizer
	if cfg.GeminiAPIKey != "" {
		generator := gemini.New(gemini.Config{
			Model:     cfg.GeminiModel,
			APIKey:    cfg.GeminiAPIKey,
			MaxTokens: cfg.GeminiMaxTokens,
			Timeout:   time.Duration(cfg.GeminiTimeoutSecs) * time.Second,
		})
		synthesizer = usecase.NewGenerativeSynthesizer(
			generator,
			time.Duration(cfg.GeminiTimeoutSecs)*time.Second,
			cfg.RefusalThreshold,
			cfg.ExtractiveBudget,
			logger,
		)
		app.GenerationEnabled = true
	} else {
		synthesizer = usecase.NewExtractiveSynthesizer(cfg.RefusalThreshold, cfg.ExtractiveBudget, logger)
	}

	app.AskService = usecase.NewAskUseCase(
		provider,
		splitter,
		index.NewDenseBuilder(),
		index.NewSparseBuilder(),
		synthesizer,
		sink,
		logger,
		usecase.Options{
			TopK:          cfg.TopK,
			CandidatePool: cfg.CandidatePool,
			RRFK:          cfg.FusionRRFK,
			DefaultMode:   domain.NormalizeMode(cfg.RetrievalMode),
		},
	)

	app.closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
