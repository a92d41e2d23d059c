package di

import (
	"context"
	"fmt"

	"formageddon/internal/application/port/input"
	"formageddon/internal/application/port/output"
	"formageddon/internal/infrastructure/browser/mechanize"
	"formageddon/internal/infrastructure/browser/rodfetch"
	infracaptcha "formageddon/internal/infrastructure/captcha"
	"formageddon/internal/infrastructure/captcha/console"
	"formageddon/internal/infrastructure/config"
	"formageddon/internal/infrastructure/delegate"
	"formageddon/internal/infrastructure/logger"
	"formageddon/internal/infrastructure/solver"
	"formageddon/internal/infrastructure/statestore"
	"formageddon/internal/usecase/captcha"
	"formageddon/internal/usecase/delivery"
	"formageddon/internal/usecase/fill"
)

type Container struct {
	Logger   output.LoggerPort
	Sessions output.SessionFactory
	Store    output.DeliveryStore
	Sink     *infracaptcha.FileSink
	Sender   input.LetterSender
	Console  *console.Console

	store    *statestore.Store
	renderer output.PageRenderer
}

type Config struct {
	Engine *config.Config

	RunName string
	Debug   bool

	// SolverAPIKey enables the automatic vision solver when the engine
	// config has solver.enabled set.
	SolverAPIKey string

	// DelegateAPIKey enables the LLM choice delegate.
	DelegateAPIKey string
	DelegateModel  string

	// InMemoryStore swaps sqlite for the in-memory store. Used by tests.
	InMemoryStore bool
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.New(cfg.RunName, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	engine := cfg.Engine

	c := &Container{Logger: log}

	if engine.RenderPages {
		renderer, err := rodfetch.New(rodfetch.DefaultConfig())
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		c.renderer = renderer
	}

	sessCfg := mechanize.DefaultConfig()
	sessCfg.Timeout = engine.RequestTimeout
	sessCfg.Renderer = c.renderer
	sessCfg.Logger = log
	c.Sessions = mechanize.Factory(sessCfg)

	if cfg.InMemoryStore {
		store, err := statestore.OpenMemory()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		c.store = store
	} else {
		store, err := statestore.Open(engine.DatabasePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		c.store = store
	}
	c.Store = c.store

	sink, err := infracaptcha.NewFileSink(engine.CaptchaDir, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create challenge sink: %w", err)
	}
	c.Sink = sink

	var choiceDelegate output.ChoiceDelegate
	if cfg.DelegateAPIKey != "" && cfg.DelegateModel != "" {
		d, err := delegate.New(delegate.Config{
			APIKey:  cfg.DelegateAPIKey,
			Model:   cfg.DelegateModel,
			BaseURL: engine.Solver.BaseURL,
			Logger:  log,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		choiceDelegate = d
	}

	fillEngine := fill.New(fill.Config{
		ReplyDomain: engine.ReplyDomain,
		Delegate:    choiceDelegate,
		Logger:      log,
	})

	var visionSolver output.Solver
	if engine.Solver.Enabled && cfg.SolverAPIKey != "" {
		solverCfg := solver.DefaultConfig(cfg.SolverAPIKey, engine.Solver.Model)
		if engine.Solver.BaseURL != "" {
			solverCfg.BaseURL = engine.Solver.BaseURL
		}
		solverCfg.Logger = log
		visionSolver = solver.NewVisionSolver(solverCfg)
	}

	coordinator := captcha.New(captcha.Config{
		Sessions: c.Sessions,
		Sink:     sink,
		Fill:     fillEngine,
		Solver:   visionSolver,
		Logger:   log,
	})

	executor := delivery.NewExecutor(delivery.ExecutorConfig{
		Fill:          fillEngine,
		Captcha:       coordinator,
		Store:         c.Store,
		Logger:        log,
		DefaultParams: engine.DefaultParams,
	})

	c.Sender = delivery.NewOrchestrator(delivery.OrchestratorConfig{
		Sessions: c.Sessions,
		Store:    c.Store,
		Executor: executor,
		Logger:   log,
	})

	if engine.Console.Enabled {
		c.Console = console.New(console.Config{
			Addr:   engine.Console.Addr,
			Sink:   sink,
			Logger: log,
		})
	}

	return c, nil
}

func (c *Container) Close() {
	if c.renderer != nil {
		c.renderer.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
