package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto/cache"
)

// NewCacheObserver 将缓存事件写入日志：命中/未命中为 debug，陈旧回退与损坏副本为 warn，失败为 error。
func NewCacheObserver(logger logrus.FieldLogger, repo string) cache.Observer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return cache.ObserverFunc(func(event cache.Event) {
		entry := logger.WithFields(CacheFields(repo, event))
		switch event.Outcome {
		case cache.OutcomeStale:
			entry.Warn("cache_stale_fallback")
		case cache.OutcomeCorrupt:
			entry.Warn("cache_corrupt_copy_rejected")
		case cache.OutcomeError:
			entry.Error("cache_load_failed")
		default:
			entry.Debug("cache_load")
		}
	})
}
