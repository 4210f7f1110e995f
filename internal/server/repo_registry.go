package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/asto/memory"
	"github.com/artipie/artipie/internal/config"
	"github.com/artipie/artipie/internal/hubmodule"
)

// RepoRoute 将仓库配置与派生属性（TTL、解析后的 Upstream/Proxy URL、缓存实例）
// 聚合在一起，供路由/代理层直接复用，避免重复解析配置。
type RepoRoute struct {
	// Config 是用户在 config.toml 中声明的 Repo 字段副本。
	Config config.RepoConfig
	// ListenPort 记录当前监听端口，方便日志/转发头输出。
	ListenPort int
	// CacheTTL 是对当前仓库生效的 TTL，若未覆盖则等于全局值。
	CacheTTL time.Duration
	// UpstreamURL/ProxyURL 在构造 Registry 时提前解析完成。
	UpstreamURL *url.URL
	ProxyURL    *url.URL
	// ModuleKey/Module 记录仓库选用的模块及其元数据。
	ModuleKey string
	Module    hubmodule.ModuleMetadata
	// CacheStrategy 代表模块默认策略与仓库覆盖后的最终结果。
	CacheStrategy hubmodule.CacheStrategyProfile
	// Storage 是以仓库名为前缀的存储子空间。
	Storage asto.Storage
	// Cache 按 CacheMode 构建，所有请求共享同一实例以便合并并发回源。
	Cache cache.Cache
}

// RegistryOptions 控制路由表构建时共享的依赖。
type RegistryOptions struct {
	// Storage 为所有仓库共享的根存储，为空时退回内存存储。
	Storage asto.Storage
	// Observer 为每个仓库生成缓存事件观察者，可为空。
	Observer func(repo string) cache.Observer
}

// RepoRegistry 提供 Host/Host:port 到 RepoRoute 的查询能力，所有仓库共享同一个监听端口。
type RepoRegistry struct {
	routes  map[string]*RepoRoute
	byName  map[string]*RepoRoute
	ordered []*RepoRoute
}

// NewRepoRegistry 根据配置构建 Host 映射。调用方应在启动阶段创建一次并复用。
func NewRepoRegistry(cfg *config.Config, opts RegistryOptions) (*RepoRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	root := opts.Storage
	if root == nil {
		root = memory.New()
	}

	registry := &RepoRegistry{
		routes: make(map[string]*RepoRoute, len(cfg.Repos)),
		byName: make(map[string]*RepoRoute, len(cfg.Repos)),
	}

	for _, repo := range cfg.Repos {
		normalizedHost := normalizeDomain(repo.Domain)
		if normalizedHost == "" {
			return nil, fmt.Errorf("invalid domain for repo %s", repo.Name)
		}
		if _, exists := registry.routes[normalizedHost]; exists {
			return nil, fmt.Errorf("duplicate domain mapping detected for %s", normalizedHost)
		}
		if _, exists := registry.byName[repo.Name]; exists {
			return nil, fmt.Errorf("duplicate repo name %s", repo.Name)
		}

		route, err := buildRepoRoute(cfg, repo, root, opts.Observer)
		if err != nil {
			return nil, err
		}

		registry.routes[normalizedHost] = route
		registry.byName[repo.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据 Host 或 Host:port 查找 RepoRoute。
func (r *RepoRegistry) Lookup(host string) (*RepoRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalizedHost, _ := normalizeHost(host)
	if normalizedHost == "" {
		return nil, false
	}

	route, ok := r.routes[normalizedHost]
	return route, ok
}

// ByName 根据仓库名查找 RepoRoute，供诊断接口使用。
func (r *RepoRegistry) ByName(name string) (*RepoRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.byName[name]
	return route, ok
}

// List 返回当前注册的 RepoRoute 列表（按配置定义的顺序）。
func (r *RepoRegistry) List() []RepoRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]RepoRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func buildRepoRoute(cfg *config.Config, repo config.RepoConfig, root asto.Storage, observer func(string) cache.Observer) (*RepoRoute, error) {
	meta, err := moduleMetadataForKey(repo.Type)
	if err != nil {
		return nil, fmt.Errorf("repo %s: %w", repo.Name, err)
	}

	upstreamURL, err := url.Parse(repo.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream for repo %s: %w", repo.Name, err)
	}

	var proxyURL *url.URL
	if repo.Proxy != "" {
		proxyURL, err = url.Parse(repo.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy for repo %s: %w", repo.Name, err)
		}
	}

	effectiveTTL := cfg.EffectiveCacheTTL(repo)
	strategy := hubmodule.ResolveStrategy(meta, repo.StrategyOverrides(effectiveTTL))

	storage := asto.Sub(root, asto.NewKey(repo.Name))
	var cacheOpts []cache.Option
	if observer != nil {
		if o := observer(repo.Name); o != nil {
			cacheOpts = append(cacheOpts, cache.WithObserver(o))
		}
	}

	return &RepoRoute{
		Config:        repo,
		ListenPort:    cfg.Global.ListenPort,
		CacheTTL:      effectiveTTL,
		UpstreamURL:   upstreamURL,
		ProxyURL:      proxyURL,
		ModuleKey:     meta.Key,
		Module:        meta,
		CacheStrategy: strategy,
		Storage:       storage,
		Cache:         buildCache(repo.CacheMode, storage, cacheOpts),
	}, nil
}

func buildCache(mode string, storage asto.Storage, opts []cache.Option) cache.Cache {
	switch mode {
	case config.CacheModeNone:
		return cache.NOP
	case config.CacheModeRemote:
		return cache.NewFromRemote(storage, opts...)
	default:
		return cache.NewFromStorage(storage, opts...)
	}
}

func moduleMetadataForKey(key string) (hubmodule.ModuleMetadata, error) {
	if meta, ok := hubmodule.Resolve(key); ok {
		return meta, nil
	}
	return hubmodule.ModuleMetadata{}, fmt.Errorf("module %s is not registered", key)
}

func normalizeDomain(domain string) string {
	host, _ := normalizeHost(domain)
	return host
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
