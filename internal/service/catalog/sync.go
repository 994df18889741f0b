package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

// Sync defaults, overridable through Options
const (
	DefaultConcurrency      = 10
	DefaultProductBatchSize = 200
	DefaultPriceBatchSize   = 1000
)

// DefaultCategories are the game lines synced when none are configured
var DefaultCategories = []string{"Magic", "Pokemon"}

// Structured error types recorded into a run's error list
const (
	errTypeFatal          = "fatal"
	errTypeGroupsFetch    = "groups_fetch"
	errTypeProductsFetch  = "products_fetch"
	errTypePricesFetch    = "prices_fetch"
	errTypeProductsUpsert = "products_upsert"
	errTypePricesUpsert   = "prices_upsert"
	errTypeGroupFailed    = "group_failed"
	errTypeUnknownGame    = "unknown_category"
)

type Options struct {
	Categories       []string
	Concurrency      int
	ProductBatchSize int
	PriceBatchSize   int
}

// Syncer runs the catalog ingestion: categories concurrently, groups
// within a category fanned out under a concurrency limit, and every
// failure recorded per group instead of aborting siblings.
type Syncer struct {
	client  *Client
	storage repository.Storage
	logger  logger.Logger

	categories       []string
	concurrency      int
	productBatchSize int
	priceBatchSize   int

	now func() time.Time
}

func NewSyncer(client *Client, storage repository.Storage, l logger.Logger, opts Options) *Syncer {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	s := &Syncer{
		client:           client,
		storage:          storage,
		logger:           l,
		categories:       opts.Categories,
		concurrency:      opts.Concurrency,
		productBatchSize: opts.ProductBatchSize,
		priceBatchSize:   opts.PriceBatchSize,
		now:              time.Now,
	}
	if len(s.categories) == 0 {
		s.categories = DefaultCategories
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.productBatchSize <= 0 {
		s.productBatchSize = DefaultProductBatchSize
	}
	if s.priceBatchSize <= 0 {
		s.priceBatchSize = DefaultPriceBatchSize
	}
	return s
}

// runStats accumulates counters across concurrent group workers
type runStats struct {
	mu    sync.Mutex
	stats models.SyncStats
}

func (r *runStats) addError(e models.SyncError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Errors = append(r.stats.Errors, e)
}

func (r *runStats) addProducts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ProductsUpserted += n
}

func (r *runStats) addPrices(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.PricesUpserted += n
}

func (r *runStats) groupDone(items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.GroupsProcessed++
	r.stats.TotalItems += items
}

func (r *runStats) categoryDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CategoriesProcessed++
}

func (r *runStats) snapshot() models.SyncStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.Errors = make([]models.SyncError, len(r.stats.Errors))
	copy(out.Errors, r.stats.Errors)
	return out
}

// gameForCategory maps an upstream category name onto the game code
// that selects the target tables
func gameForCategory(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "magic":
		return models.GameMTG, true
	case "pokemon":
		return models.GamePokemon, true
	default:
		return "", false
	}
}

// Run executes one full sync and records its summary row. The returned
// stats are always populated, even when the run failed early; partial
// observability beats a lost run.
func (s *Syncer) Run(ctx context.Context) (models.SyncStats, error) {
	start := s.now()
	stats := &runStats{stats: models.SyncStats{
		StartedAt: start,
		Errors:    []models.SyncError{},
	}}

	s.logger.Info("Catalog sync started", "categories", strings.Join(s.categories, ", "))

	categories, err := s.client.CategoriesToSync(ctx, s.categories)
	if err != nil {
		stats.addError(models.SyncError{Type: errTypeFatal, Message: err.Error()})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, category := range categories {
		g.Go(func() error {
			s.syncCategory(gctx, category, stats)
			return nil
		})
	}
	_ = g.Wait()

	final := s.finalize(ctx, stats, start)

	s.logger.Info("Catalog sync finished",
		"duration_ms", final.DurationMS,
		"categories", final.CategoriesProcessed,
		"groups", final.GroupsProcessed,
		"products_upserted", final.ProductsUpserted,
		"prices_upserted", final.PricesUpserted,
		"errors", len(final.Errors))

	return final, err
}

func (s *Syncer) finalize(ctx context.Context, stats *runStats, start time.Time) models.SyncStats {
	end := s.now()

	stats.mu.Lock()
	stats.stats.FinishedAt = end
	stats.stats.DurationMS = end.Sub(start).Milliseconds()
	stats.mu.Unlock()

	final := stats.snapshot()
	if err := s.storage.SyncLog().CreateRun(ctx, final); err != nil {
		s.logger.Error("Recording sync run failed", "error", err)
	}
	return final
}

func (s *Syncer) syncCategory(ctx context.Context, category Category, stats *runStats) {
	game, ok := gameForCategory(category.Name)
	if !ok {
		stats.addError(models.SyncError{
			Type:       errTypeUnknownGame,
			Message:    "no target tables for category " + category.Name,
			CategoryID: category.CategoryID,
		})
		return
	}

	groups, err := s.client.Groups(ctx, category.CategoryID)
	if err != nil {
		stats.addError(models.SyncError{
			Type:       errTypeGroupsFetch,
			Message:    err.Error(),
			CategoryID: category.CategoryID,
		})
		return
	}
	if len(groups) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, group := range groups {
		g.Go(func() error {
			if err := s.syncGroup(ctx, category, group, game, stats); err != nil {
				stats.addError(models.SyncError{
					Type:       errTypeGroupFailed,
					Message:    err.Error(),
					GroupID:    group.GroupID,
					CategoryID: category.CategoryID,
				})
				s.logger.Error("Group sync failed",
					"category_id", category.CategoryID, "group_id", group.GroupID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.categoryDone()
}

func (s *Syncer) syncGroup(ctx context.Context, category Category, group Group, game string, stats *runStats) error {
	var products []Product
	var prices []Price

	fetch, fctx := errgroup.WithContext(ctx)
	fetch.Go(func() error {
		var err error
		products, err = s.client.Products(fctx, category.CategoryID, group.GroupID)
		return err
	})

	var pricesErr error
	fetch.Go(func() error {
		// A failed price fetch does not sink the group's products
		prices, pricesErr = s.client.Prices(fctx, category.CategoryID, group.GroupID)
		return nil
	})

	if err := fetch.Wait(); err != nil {
		stats.addError(models.SyncError{
			Type:       errTypeProductsFetch,
			Message:    err.Error(),
			GroupID:    group.GroupID,
			CategoryID: category.CategoryID,
		})
		return nil
	}
	if pricesErr != nil {
		stats.addError(models.SyncError{
			Type:       errTypePricesFetch,
			Message:    pricesErr.Error(),
			GroupID:    group.GroupID,
			CategoryID: category.CategoryID,
		})
	}

	now := s.now()

	rows := TransformProducts(game, products, now)
	for _, batch := range batches(rows, s.productBatchSize) {
		if err := s.storage.Catalog().UpsertProducts(ctx, game, batch); err != nil {
			stats.addError(models.SyncError{
				Type:       errTypeProductsUpsert,
				Message:    err.Error(),
				Count:      len(batch),
				GroupID:    group.GroupID,
				CategoryID: category.CategoryID,
			})
			continue
		}
		stats.addProducts(len(batch))
	}

	priceRows := TransformPrices(prices, now, now)
	for _, batch := range batches(priceRows, s.priceBatchSize) {
		if err := s.storage.Catalog().UpsertPrices(ctx, game, batch); err != nil {
			stats.addError(models.SyncError{
				Type:       errTypePricesUpsert,
				Message:    err.Error(),
				Count:      len(batch),
				GroupID:    group.GroupID,
				CategoryID: category.CategoryID,
			})
			continue
		}
		stats.addPrices(len(batch))
	}

	stats.groupDone(len(products))
	return nil
}

// batches splits rows into fixed-size slices, last one possibly short
func batches[T any](rows []T, size int) [][]T {
	out := make([][]T, 0, (len(rows)+size-1)/size)
	for i := 0; i < len(rows); i += size {
		end := min(i+size, len(rows))
		out = append(out, rows[i:end])
	}
	return out
}
