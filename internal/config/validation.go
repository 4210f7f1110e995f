package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

var supportedRepoTypes = map[string]struct{}{
	"maven":    {},
	"npm":      {},
	"go":       {},
	"pypi":     {},
	"docker":   {},
	"files":    {},
	"composer": {},
	"debian":   {},
	"apk":      {},
}

const supportedRepoTypeList = "maven|npm|go|pypi|docker|files|composer|debian|apk"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return globalError("ListenPort", "必须在 1-65535")
	}
	if g.LogFormat != "" && g.LogFormat != "json" && g.LogFormat != "text" {
		return globalError("LogFormat", "仅支持 json/text")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return globalError("CacheTTL", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return globalError("UpstreamTimeout", "必须大于 0")
	}
	if !strings.HasPrefix(g.MetricsPath, "/-/") {
		return globalError("MetricsPath", "必须位于 /-/ 诊断路径下")
	}
	if err := g.Storage.validate(); err != nil {
		return err
	}

	if len(c.Repos) == 0 {
		return errors.New("至少需要配置一个 Repo")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Repos {
		repo := &c.Repos[i]
		if repo.Name == "" {
			return repoError("", "Name", "不能为空")
		}
		if strings.ContainsAny(repo.Name, "/\\ ") || repo.Name == "." || repo.Name == ".." {
			return repoError(repo.Name, "Name", "不能包含路径分隔符或空格")
		}
		if _, exists := seenNames[repo.Name]; exists {
			return repoError(repo.Name, "Name", "重复")
		}
		seenNames[repo.Name] = struct{}{}

		if err := validateDomain(repo.Domain); err != nil {
			return repoWrap(repo.Name, "Domain", err)
		}

		normalizedType := strings.ToLower(strings.TrimSpace(repo.Type))
		if normalizedType == "" {
			return repoError(repo.Name, "Type", "不能为空")
		}
		if _, ok := supportedRepoTypes[normalizedType]; !ok {
			return repoError(repo.Name, "Type", "仅支持 "+supportedRepoTypeList)
		}
		repo.Type = normalizedType

		if _, ok := hubmodule.Resolve(normalizedType); !ok {
			return repoError(repo.Name, "Type", fmt.Sprintf("未注册模块: %s", normalizedType))
		}

		switch repo.CacheMode {
		case "", CacheModeStorage, CacheModeRemote, CacheModeNone:
		default:
			return repoError(repo.Name, "CacheMode", "仅支持 storage/remote/none")
		}
		if _, ok := hubmodule.ParseValidationMode(repo.Validation); !ok {
			return repoError(repo.Name, "Validation", "仅支持 default/always/ttl/checksum/refresh")
		}

		if (repo.Username == "") != (repo.Password == "") {
			return repoError(repo.Name, "Username/Password", "必须同时提供或同时留空")
		}
		if err := validateUpstream(repo.Upstream); err != nil {
			return repoWrap(repo.Name, "Upstream", err)
		}
		if repo.Proxy != "" {
			if err := validateUpstream(repo.Proxy); err != nil {
				return repoWrap(repo.Name, "Proxy", err)
			}
		}
	}

	return nil
}

func (s StorageConfig) validate() error {
	switch s.Type {
	case StorageFS:
		if s.Path == "" {
			return storageError("Path", "fs 存储需要目录")
		}
	case StorageMemory:
	case StorageRedis:
		if s.RedisURL == "" {
			return storageError("RedisURL", "redis 存储需要连接地址")
		}
	case StorageS3:
		if s.S3Endpoint == "" {
			return storageError("S3Endpoint", "s3 存储需要 endpoint")
		}
		if s.S3Bucket == "" {
			return storageError("S3Bucket", "s3 存储需要 bucket")
		}
		if s.S3AccessKey == "" || s.S3SecretKey == "" {
			return storageError("S3AccessKey/S3SecretKey", "必须同时提供")
		}
	default:
		return storageError("Type", "仅支持 fs/memory/redis/s3")
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("Domain 不能为空")
	}
	if strings.Contains(domain, "/") {
		return errors.New("Domain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("Domain 不允许包含空格")
	}
	if strings.HasPrefix(domain, "http") {
		return errors.New("Domain 不应包含协议头")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// EffectiveCacheTTL 返回特定仓库生效的 TTL，未覆盖时回退至全局值。
func (c *Config) EffectiveCacheTTL(r RepoConfig) time.Duration {
	if r.CacheTTL.DurationValue() > 0 {
		return r.CacheTTL.DurationValue()
	}
	return c.Global.CacheTTL.DurationValue()
}
