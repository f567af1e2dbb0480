package container

import (
	"context"
	"fmt"
	"log"

	"blockrand/adapters/excel"
	"blockrand/adapters/postgres"
	"blockrand/adapters/rng"
	"blockrand/app"
	"blockrand/domain/allocation"
	"blockrand/internal/config"
	"blockrand/internal/errors"
	"blockrand/internal/migration"
	"blockrand/internal/randomization"
	"blockrand/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Storage
	HistoryRepo ports.HistoryRepository
	Exporter    ports.HistoryExporter
	RNG         ports.RNGPort

	// Allocation
	Stratifier *randomization.Stratifier
	Engine     *randomization.Engine

	// Application services
	Enrollment *app.EnrollmentService
	Balance    *app.BalanceReporter
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		RNG:    rng.NewSeededRNG(),
	}

	return c, nil
}

// Init opens the configured history store, replays the stored history and
// builds the allocation engine
func (c *Container) Init(ctx context.Context) error {
	switch c.Config.Storage.Backend {
	case config.BackendPostgres:
		db, err := sqlx.Connect("postgres", c.Config.Storage.DatabaseURL)
		if err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to connect to database"))
		}
		if err := c.InitWithDatabase(ctx, db); err != nil {
			db.Close()
			return err
		}
		return nil
	default:
		files := excel.NewFileHistoryRepository(c.fileConfig())
		return c.InitWithRepository(ctx, files, files)
	}
}

// InitWithDatabase initializes the postgres history store
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	// the spreadsheet mirror stays available next to the database
	var exporter ports.HistoryExporter
	if c.Config.Storage.HistoryXLSX != "" {
		exporter = excel.NewFileHistoryRepository(excel.FileConfig{
			XLSXPath:  c.Config.Storage.HistoryXLSX,
			SheetName: excel.DefaultFileConfig().SheetName,
		})
	}

	return c.InitWithRepository(ctx, postgres.NewHistoryRepository(db), exporter)
}

// InitWithRepository builds the allocation stack on top of an already
// opened store. exporter may be nil.
func (c *Container) InitWithRepository(ctx context.Context, repo ports.HistoryRepository, exporter ports.HistoryExporter) error {
	if repo == nil {
		return fmt.Errorf("history repository cannot be nil")
	}
	c.HistoryRepo = repo
	c.Exporter = exporter

	stratifier, err := BuildStratifier(c.Config.Randomization.ExtraStrata)
	if err != nil {
		return errors.Wrap(err, "invalid stratification")
	}
	c.Stratifier = stratifier

	history, err := app.RestoreHistory(ctx, repo, stratifier)
	if err != nil {
		return err
	}

	engineConfig, err := EngineConfig(c.Config.Randomization)
	if err != nil {
		return errors.Wrap(err, "invalid randomization settings")
	}
	stream, err := c.RNG.SeededStream(ctx, "allocation", engineConfig.Seed)
	if err != nil {
		return err
	}

	c.Engine, err = randomization.NewEngine(engineConfig, stratifier, randomization.NewTracker(history), stream)
	if err != nil {
		return errors.Wrap(err, "failed to create allocation engine")
	}

	c.Enrollment = app.NewEnrollmentService(c.Engine, repo, exporter)
	c.Balance = app.NewBalanceReporter(c.Engine)

	log.Printf("[Container] allocation ready: %d strata, block size %d, bias %t, priority %s, %d assignments restored",
		len(stratifier.Keys()), engineConfig.BlockSize, engineConfig.BiasEnabled, engineConfig.PriorityMode, history.Len())
	return nil
}

// BuildStratifier returns gender × age band followed by any extra dimensions
func BuildStratifier(extra []config.StratumSpec) (*randomization.Stratifier, error) {
	dims := []randomization.Dimension{
		randomization.GenderDimension{},
		randomization.AgeBandDimension{Threshold: allocation.AgeThreshold},
	}
	for _, spec := range extra {
		dim, err := randomization.NewCovariateDimension(spec.Name, spec.Levels)
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}
	return randomization.NewStratifier(dims...)
}

// EngineConfig translates environment settings into engine settings
func EngineConfig(rc config.RandomizationConfig) (randomization.Config, error) {
	mode, err := randomization.ParsePriorityMode(rc.PriorityMode)
	if err != nil {
		return randomization.Config{}, err
	}
	cfg := randomization.DefaultConfig()
	cfg.BlockSize = rc.BlockSize
	cfg.BiasEnabled = rc.BiasEnabled
	cfg.PriorityMode = mode
	cfg.Seed = rc.Seed
	return cfg, cfg.Validate()
}

func (c *Container) fileConfig() excel.FileConfig {
	fc := excel.DefaultFileConfig()
	fc.CSVPath = c.Config.Storage.HistoryCSV
	fc.XLSXPath = c.Config.Storage.HistoryXLSX
	return fc
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
