// Package documents serves rendered invoices through the document cache,
// rendering on a miss.
package documents

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/muandane/special-stack/invoicer/internal/cache"
	"github.com/muandane/special-stack/invoicer/internal/invoice"
	"github.com/muandane/special-stack/invoicer/internal/render"
)

var (
	rendersTotal      = metrics.GetOrCreateCounter("invoice_renders_total")
	renderErrorsTotal = metrics.GetOrCreateCounter("invoice_render_errors_total")
	renderDuration    = metrics.GetOrCreateHistogram("invoice_render_duration_seconds")
)

// Service serves rendered invoices from the document cache, rendering and
// caching them on a miss.
type Service struct {
	store    invoice.Store
	cache    *cache.DocumentCache
	renderer render.Renderer
	logger   *slog.Logger

	prefetchLimit int
	group         singleflight.Group

	// epochs counts invalidations per invoice so a render that started
	// before an edit is not cached after it. mu is taken before the cache
	// lock, never after.
	mu     sync.Mutex
	epochs map[uuid.UUID]uint64
}

// Options configures a Service. Store, Cache and Renderer are required.
type Options struct {
	Store    invoice.Store
	Cache    *cache.DocumentCache
	Renderer render.Renderer
	Logger   *slog.Logger
	// PrefetchConcurrency bounds concurrent renders in Prefetch.
	PrefetchConcurrency int
}

// NewService validates opts and fills in defaults for the logger and the
// prefetch concurrency.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Cache == nil || opts.Renderer == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "store, cache and renderer are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PrefetchConcurrency <= 0 {
		opts.PrefetchConcurrency = 4
	}

	return &Service{
		store:         opts.Store,
		cache:         opts.Cache,
		renderer:      opts.Renderer,
		logger:        opts.Logger,
		prefetchLimit: opts.PrefetchConcurrency,
		epochs:        make(map[uuid.UUID]uint64),
	}, nil
}

// Document returns the rendered invoice and whether it came from the cache.
// Concurrent misses for the same invoice share one render.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (*render.Document, bool, error) {
	if cached, ok := s.cache.Get(id); ok {
		if doc, ok := cached.(*render.Document); ok {
			return doc, true, nil
		}
		// Foreign document types are never stored by this service.
		s.cache.Remove(id)
	}

	v, err, _ := s.group.Do(id.String(), func() (interface{}, error) {
		return s.render(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*render.Document), false, nil
}

func (s *Service) render(ctx context.Context, id uuid.UUID) (*render.Document, error) {
	epoch := s.epoch(id)
	start := time.Now()

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.renderer.Render(ctx, inv)
	if err != nil {
		renderErrorsTotal.Inc()
		return nil, errors.WithContext(err, "invoice_id", id.String())
	}
	rendersTotal.Inc()
	renderDuration.UpdateDuration(start)

	if !s.storeIfCurrent(id, epoch, doc) {
		s.logger.Debug("discarding stale render", "invoice_id", id.String())
	}
	return doc, nil
}

// storeIfCurrent caches doc unless id was invalidated after epoch was read.
// The check and the write happen under s.mu so an Invalidate cannot slip
// between them.
func (s *Service) storeIfCurrent(id uuid.UUID, epoch uint64, doc *render.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epochs[id] != epoch {
		return false
	}
	s.cache.Set(id, doc)
	return true
}

// Invalidate drops the cached document for id after an edit or delete.
func (s *Service) Invalidate(id uuid.UUID) {
	s.mu.Lock()
	s.epochs[id]++
	s.cache.Remove(id)
	s.mu.Unlock()

	s.group.Forget(id.String())
}

func (s *Service) epoch(id uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[id]
}

// PrefetchResult reports the outcome per invoice id.
type PrefetchResult struct {
	Cached   []uuid.UUID       `json:"cached"`
	Rendered []uuid.UUID       `json:"rendered"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Prefetch renders every id that is not cached yet. Failures are reported
// per id and do not stop the other renders.
func (s *Service) Prefetch(ctx context.Context, ids []uuid.UUID) PrefetchResult {
	result := PrefetchResult{
		Cached:   []uuid.UUID{},
		Rendered: []uuid.UUID{},
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.prefetchLimit)

	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if s.cache.Contains(id) {
			result.Cached = append(result.Cached, id)
			continue
		}

		g.Go(func() error {
			_, hit, err := s.Document(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if result.Failed == nil {
					result.Failed = make(map[string]string)
				}
				result.Failed[id.String()] = err.Error()
			case hit:
				result.Cached = append(result.Cached, id)
			default:
				result.Rendered = append(result.Rendered, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("prefetch completed",
		"requested", len(ids),
		"cached", len(result.Cached),
		"rendered", len(result.Rendered),
		"failed", len(result.Failed),
	)
	return result
}

func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

func (s *Service) ClearCache() {
	s.cache.Clear()
}
