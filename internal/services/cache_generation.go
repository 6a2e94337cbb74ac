package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"region-system/internal/repositories"
	"region-system/pkg/metrics"
)

const (
	cacheGenerationKey = "org:cache:gen"
	treeCacheKeyFmt    = "org:tree:%s:%s"
	indexCacheKeyFmt   = "org:index:%s:%d"
)

// cacheGeneration - счётчик поколений кеша. Ключи дерева и индексов включают номер
// поколения, поэтому один Incr после коммита делает все старые записи недостижимыми.
type cacheGeneration struct {
	cache  repositories.CacheRepositoryInterface
	logger *zap.Logger
}

// current возвращает номер поколения. ok=false - кеш недоступен, читать и писать его не нужно.
func (g *cacheGeneration) current(ctx context.Context) (string, bool) {
	gen, err := g.cache.Get(ctx, cacheGenerationKey)
	if err == nil {
		return gen, true
	}
	if errors.Is(err, repositories.ErrCacheMiss) {
		return "0", true
	}
	g.logger.Warn("Кеш недоступен, работаем без него", zap.Error(err))
	return "", false
}

// invalidate удаляет индексы затронутых узлов текущего поколения и переключает поколение.
func (g *cacheGeneration) invalidate(ctx context.Context, ids ...uint64) {
	if gen, ok := g.current(ctx); ok && len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, indexCacheKey(gen, id))
		}
		if err := g.cache.Del(ctx, keys...); err != nil {
			g.logger.Error("Не удалось удалить индексы из кеша", zap.Error(err), zap.Uint64s("ids", ids))
		}
	}

	if _, err := g.cache.Incr(ctx, cacheGenerationKey); err != nil {
		g.logger.Error("Не удалось инвалидировать кеш дерева", zap.Error(err))
		return
	}
	metrics.CacheInvalidationsTotal.Inc()
}

func treeCacheKey(gen, term string) string {
	return fmt.Sprintf(treeCacheKeyFmt, gen, strings.ToLower(strings.TrimSpace(term)))
}

func indexCacheKey(gen string, id uint64) string {
	return fmt.Sprintf(indexCacheKeyFmt, gen, id)
}
