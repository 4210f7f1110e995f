package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto/cache"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 repo/domain/缓存结果字段，供代理请求日志复用。
func RequestFields(repo, domain, repoType, authMode, moduleKey string, outcome cache.Outcome) logrus.Fields {
	return logrus.Fields{
		"repo":       repo,
		"domain":     domain,
		"repo_type":  repoType,
		"auth_mode":  authMode,
		"cache":      string(outcome),
		"cache_hit":  outcome == cache.OutcomeHit,
		"module_key": moduleKey,
	}
}

// CacheFields 把一次缓存查询事件展开为日志字段。
func CacheFields(repo string, event cache.Event) logrus.Fields {
	fields := logrus.Fields{
		"repo":        repo,
		"key":         event.Key.String(),
		"outcome":     string(event.Outcome),
		"duration_ms": event.Duration.Milliseconds(),
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	return fields
}
