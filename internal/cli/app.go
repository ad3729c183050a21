package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/paywatch/internal/checkout"
	"github.com/roach88/paywatch/internal/commit"
	"github.com/roach88/paywatch/internal/config"
	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pgstore"
	"github.com/roach88/paywatch/internal/reconcile"
	"github.com/roach88/paywatch/internal/record"
	"github.com/roach88/paywatch/internal/store"
)

// Chain is the blockchain access the CLI needs: status checks and
// broadcasting. Implemented by *ledger.Blockfrost.
type Chain interface {
	ledger.Oracle
	ledger.Submitter
}

// app is the wired system shared by the commands.
type app struct {
	cfg       *config.Config
	store     *store.Store
	pg        *pgstore.Store
	chain     Chain
	events    *notify.Recorder
	registry  *prometheus.Registry
	committer *commit.Committer
	loop      *reconcile.Loop
	logger    *slog.Logger
}

// openApp loads configuration and wires store, system of record, chain,
// committer and loop. The loop is not started.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	a := &app{
		cfg:      cfg,
		events:   notify.NewRecorder(notify.DefaultRecorderSize),
		registry: prometheus.NewRegistry(),
		logger:   slog.Default(),
	}

	a.logger.Debug("opening database", "path", cfg.Database.Path)
	if a.store, err = store.Open(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	writers, err := a.writers(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	if a.chain, err = a.openChain(opts); err != nil {
		a.close()
		return nil, err
	}

	sink := notify.Fanout{a.events, notify.NewLogSink(a.logger)}
	a.committer = commit.New(writers,
		commit.WithSink(sink),
		commit.WithLogger(a.logger),
	)
	a.loop, err = reconcile.New(a.store, a.chain, a.committer,
		reconcile.WithConfig(cfg.Loop()),
		reconcile.WithSink(sink),
		reconcile.WithLogger(a.logger),
		reconcile.WithMetrics(reconcile.NewMetrics(a.registry)),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// writers returns the system of record selected by database.backend.
func (a *app) writers(ctx context.Context) (map[payload.Kind]record.Writer, error) {
	if a.cfg.Database.Backend != config.BackendPostgres {
		return a.store.Writers(), nil
	}
	pg, err := pgstore.New(ctx, a.cfg.Database.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open system of record: %w", err)
	}
	a.pg = pg
	return pg.Writers(), nil
}

func (a *app) openChain(opts *RootOptions) (Chain, error) {
	if opts.Chain != nil {
		return opts.Chain, nil
	}
	url, err := a.cfg.BlockfrostURL()
	if err != nil {
		return nil, err
	}
	if a.cfg.Blockfrost.ProjectID == "" {
		a.logger.Warn("blockfrost project id is not set; requests will be rejected")
	}
	return ledger.NewBlockfrost(url, a.cfg.Blockfrost.ProjectID), nil
}

// checkout returns a Checkout submitting through the chain and tracking
// with the loop.
func (a *app) checkout() (*checkout.Checkout, error) {
	v, err := payload.NewValidator()
	if err != nil {
		return nil, err
	}
	return checkout.New(a.chain, a.loop, v, checkout.WithLogger(a.logger)), nil
}

func (a *app) close() {
	if a.loop != nil {
		a.loop.Stop()
	}
	a.pg.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("error closing database", "error", err)
		}
	}
}
