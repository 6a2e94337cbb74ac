package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"region-system/internal/entities"
	"region-system/internal/hierarchy"
	"region-system/internal/repositories"
	"region-system/pkg/metrics"
)

type HierarchicalIndexServiceInterface interface {
	IndexOf(ctx context.Context, id uint64) string
}

// HierarchicalIndexService считает индекс вида "1.2.3": ранг узла и каждого предка среди соседей.
type HierarchicalIndexService struct {
	unitRepo repositories.OrganizationUnitRepositoryInterface
	cache    repositories.CacheRepositoryInterface
	gen      *cacheGeneration
	logger   *zap.Logger
	cacheTTL time.Duration
}

func NewHierarchicalIndexService(
	unitRepo repositories.OrganizationUnitRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *HierarchicalIndexService {
	return &HierarchicalIndexService{
		unitRepo: unitRepo,
		cache:    cacheRepo,
		gen:      &cacheGeneration{cache: cacheRepo, logger: logger},
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// IndexOf никогда не возвращает ошибку: если цепочку не удалось разрешить, результат пустой.
func (s *HierarchicalIndexService) IndexOf(ctx context.Context, id uint64) string {
	gen, cacheOK := s.gen.current(ctx)
	key := indexCacheKey(gen, id)
	if cacheOK {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			metrics.CacheHitsTotal.WithLabelValues("index").Inc()
			return cached
		}
	}
	metrics.CacheMissesTotal.WithLabelValues("index").Inc()

	index, ok := s.compute(ctx, id)
	if !ok {
		return ""
	}
	if cacheOK {
		if err := s.cache.Set(ctx, key, index, s.cacheTTL); err != nil {
			s.logger.Error("HierarchicalIndexService: не удалось сохранить индекс в кеш", zap.Uint64("id", id), zap.Error(err))
		}
	}
	return index
}

func (s *HierarchicalIndexService) compute(ctx context.Context, id uint64) (string, bool) {
	ranks := make([]string, 0, entities.MaxDepth)
	visited := make(map[uint64]struct{}, entities.MaxDepth)

	current, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("HierarchicalIndexService: узел не найден", zap.Uint64("id", id), zap.Error(err))
		return "", false
	}
	for {
		if _, seen := visited[current.ID]; seen || len(ranks) >= entities.MaxDepth {
			s.logger.Warn("HierarchicalIndexService: цепочка родителей не разрешается", zap.Uint64("id", id))
			return "", false
		}
		visited[current.ID] = struct{}{}

		siblings, err := s.unitRepo.FindChildren(ctx, current.ParentID)
		if err != nil {
			s.logger.Warn("HierarchicalIndexService: не удалось получить соседей", zap.Uint64("id", current.ID), zap.Error(err))
			return "", false
		}
		rank := 0
		for i, sibling := range siblings {
			if sibling.ID == current.ID {
				rank = i + 1
				break
			}
		}
		if rank == 0 {
			return "", false
		}
		ranks = append([]string{strconv.Itoa(rank)}, ranks...)

		if current.ParentID == nil {
			return hierarchy.JoinIndex(ranks), true
		}
		parent, err := s.unitRepo.FindByID(ctx, *current.ParentID)
		if err != nil {
			s.logger.Warn("HierarchicalIndexService: предок не найден", zap.Uint64("id", id), zap.Uint64("parent_id", *current.ParentID))
			return "", false
		}
		current = parent
	}
}
