package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"region-system/internal/hierarchy"
	"region-system/internal/repositories"
	"region-system/pkg/metrics"
)

type TreeCacheInterface interface {
	ListTree(ctx context.Context, search string, forceRefresh bool) ([]*hierarchy.Node, error)
	Invalidate(ctx context.Context, ids ...uint64)
}

// TreeCache материализует лес и кеширует его по поисковой строке.
type TreeCache struct {
	unitRepo repositories.OrganizationUnitRepositoryInterface
	cache    repositories.CacheRepositoryInterface
	gen      *cacheGeneration
	logger   *zap.Logger
	cacheTTL time.Duration
}

func NewTreeCache(
	unitRepo repositories.OrganizationUnitRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *TreeCache {
	return &TreeCache{
		unitRepo: unitRepo,
		cache:    cacheRepo,
		gen:      &cacheGeneration{cache: cacheRepo, logger: logger},
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// ListTree отдаёт лес из кеша или строит его заново. forceRefresh пропускает чтение,
// но результат всё равно кладётся в кеш.
func (t *TreeCache) ListTree(ctx context.Context, search string, forceRefresh bool) ([]*hierarchy.Node, error) {
	gen, cacheOK := t.gen.current(ctx)
	key := treeCacheKey(gen, search)

	if cacheOK && !forceRefresh {
		cached, errGet := t.cache.Get(ctx, key)
		if errGet == nil {
			var forest []*hierarchy.Node
			if err := json.Unmarshal([]byte(cached), &forest); err == nil {
				metrics.CacheHitsTotal.WithLabelValues("tree").Inc()
				t.logger.Debug("TreeCache: дерево найдено в кеше", zap.String("key", key))
				return forest, nil
			} else {
				t.logger.Warn("TreeCache: ошибка при десериализации дерева из кеша", zap.Error(err), zap.String("key", key))
			}
		}
	}
	metrics.CacheMissesTotal.WithLabelValues("tree").Inc()

	forest, err := t.build(ctx, search)
	if err != nil {
		return nil, err
	}

	if cacheOK {
		raw, errMarshal := json.Marshal(forest)
		if errMarshal != nil {
			t.logger.Error("TreeCache: не удалось сериализовать дерево", zap.Error(errMarshal))
		} else if errSet := t.cache.Set(ctx, key, string(raw), t.cacheTTL); errSet != nil {
			t.logger.Error("TreeCache: не удалось сохранить дерево в кеш", zap.String("key", key), zap.Error(errSet))
		}
	}
	return forest, nil
}

func (t *TreeCache) build(ctx context.Context, search string) ([]*hierarchy.Node, error) {
	started := time.Now()
	defer func() {
		metrics.TreeBuildDurationMs.Observe(float64(time.Since(started).Milliseconds()))
	}()

	units, err := t.unitRepo.FindAll(ctx)
	if err != nil {
		t.logger.Error("TreeCache: не удалось загрузить подразделения", zap.Error(err))
		return nil, err
	}
	indices := hierarchy.SiblingRanks(units)
	return hierarchy.BuildForest(hierarchy.Filter(units, search), indices), nil
}

// Invalidate вызывается только после коммита записи.
func (t *TreeCache) Invalidate(ctx context.Context, ids ...uint64) {
	t.gen.invalidate(ctx, ids...)
}
