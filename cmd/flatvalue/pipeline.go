package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/flatvalue/internal/config"
	"github.com/rewired-gh/flatvalue/internal/datagov"
	"github.com/rewired-gh/flatvalue/internal/export"
	"github.com/rewired-gh/flatvalue/internal/logger"
	"github.com/rewired-gh/flatvalue/internal/metrics"
	"github.com/rewired-gh/flatvalue/internal/models"
	"github.com/rewired-gh/flatvalue/internal/storage"
	"github.com/rewired-gh/flatvalue/internal/telegram"
	"github.com/rewired-gh/flatvalue/internal/valuation"
)

const (
	csvFileName     = "scored_transactions.csv"
	xlsxFileName    = "scored_transactions.xlsx"
	summaryFileName = "summary.json"
)

// errNoCache is returned by score when nothing has been fetched yet.
var errNoCache = errors.New("no cached transactions; run fetch first")

// notifier sends the top listings of a run.
type notifier interface {
	SendTop(ctx context.Context, top []models.Scored, summary models.Summary) error
}

type app struct {
	cfg      *config.Config
	asOf     time.Time
	cache    *storage.Cache
	client   *datagov.Client
	recorder *metrics.Recorder

	// newNotifier is swapped in tests.
	newNotifier func() (notifier, error)
}

func newApp(cfg *config.Config, asOf time.Time) *app {
	a := &app{
		cfg:   cfg,
		asOf:  asOf,
		cache: storage.New(cfg.Cache.FilePath, cfg.Cache.MaxAge),
		client: datagov.NewClient(
			cfg.DataGov.APIBaseURL,
			cfg.DataGov.ResourceID,
			cfg.DataGov.Timeout,
			datagov.ClientConfig{
				PageSize:        cfg.DataGov.PageSize,
				MaxRetries:      cfg.DataGov.MaxRetries,
				RetryDelayBase:  cfg.DataGov.RetryDelayBase,
				RequestInterval: cfg.DataGov.RequestInterval,
			},
		),
		recorder: metrics.NewRecorder(),
	}
	a.newNotifier = func() (notifier, error) {
		return telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	}
	return a
}

// fetch downloads the configured month window and replaces the cache.
func (a *app) fetch(ctx context.Context) ([]models.Transaction, error) {
	from, to := datagov.MonthWindow(a.asOf, a.cfg.DataGov.MonthsBack)
	logger.Info("Fetching transactions for %s to %s", from, to)

	txns, err := a.client.FetchTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	if err := a.cache.Save(txns, from, to); err != nil {
		return nil, fmt.Errorf("failed to save cache: %w", err)
	}
	logger.Info("Cached %d transactions at %s", len(txns), a.cache.Path())
	return txns, nil
}

// cachedTransactions returns whatever is cached, stale or not.
func (a *app) cachedTransactions() ([]models.Transaction, error) {
	snap, fresh, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	if snap == nil {
		return nil, errNoCache
	}
	if !fresh {
		logger.Warn("Cached transactions are %v old (max age %v)", snap.Age(time.Now()).Round(time.Minute), a.cfg.Cache.MaxAge)
	}
	return snap.Transactions, nil
}

// transactions uses the cache when fresh and fetches otherwise.
func (a *app) transactions(ctx context.Context) ([]models.Transaction, error) {
	snap, fresh, err := a.cache.Load()
	if err != nil {
		logger.Warn("Ignoring unreadable cache: %v", err)
	} else if snap != nil && fresh {
		logger.Info("Using %d cached transactions saved at %s", len(snap.Transactions), snap.SavedAt.Format(time.RFC3339))
		return snap.Transactions, nil
	}
	return a.fetch(ctx)
}

// score runs the valuation engine and publishes the result.
func (a *app) score(ctx context.Context, txns []models.Transaction) (*valuation.Result, error) {
	engine, err := valuation.New(a.cfg.Valuation.Params(), a.asOf)
	if err != nil {
		return nil, err
	}

	res, err := engine.Run(txns)
	if err != nil {
		var dqe *valuation.DataQualityError
		if errors.As(err, &dqe) {
			logger.Error("Rejected input at record %d (id %d): field %s has value %q", dqe.Index, dqe.ID, dqe.Field, dqe.Value)
		}
		return nil, err
	}

	s := res.Summary
	logger.Info("Scored %d transactions (%d excluded): %d undervalued, %d fair, %d overvalued",
		s.TotalTransactions, s.ExcludedCount,
		s.UndervaluationStats.UndervaluedCount, s.UndervaluationStats.FairValueCount, s.UndervaluationStats.OvervaluedCount)
	for _, ex := range res.Diagnostics.Exclusions {
		logger.Debug("Excluded record %d (id %d, %s %s): %s", ex.Index, ex.ID, ex.Town, ex.FlatType, ex.Reason)
	}

	if err := a.writeExports(ctx, res); err != nil {
		return nil, err
	}

	a.recorder.Observe(res.Summary, res.Diagnostics, a.asOf)
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		logger.Warn("Failed to write metrics: %v", err)
	}

	if a.cfg.Telegram.Enabled {
		a.notify(ctx, res)
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	return res, nil
}

// writeExports writes the enabled output files concurrently.
func (a *app) writeExports(ctx context.Context, res *valuation.Result) error {
	dir := a.cfg.Export.OutputDir
	g, _ := errgroup.WithContext(ctx)

	if a.cfg.Export.CSV {
		g.Go(func() error {
			return export.WriteCSVFile(filepath.Join(dir, csvFileName), res.Records)
		})
	}
	if a.cfg.Export.XLSX {
		g.Go(func() error {
			return export.WriteXLSX(filepath.Join(dir, xlsxFileName), res.Records, res.Summary)
		})
	}
	if a.cfg.Export.SummaryJSON {
		g.Go(func() error {
			return export.WriteSummaryJSON(filepath.Join(dir, summaryFileName), res.Summary, res.Diagnostics)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to write exports: %w", err)
	}
	logger.Info("Reports written to %s", dir)
	return nil
}

// notify failures are logged, not returned: the reports are already on disk.
func (a *app) notify(ctx context.Context, res *valuation.Result) {
	n, err := a.newNotifier()
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return
	}
	top := export.TopUndervalued(res.Records, a.cfg.Telegram.TopK)
	if err := n.SendTop(ctx, top, res.Summary); err != nil {
		logger.Error("Failed to send Telegram notification: %v", err)
	}
}
