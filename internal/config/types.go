package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 存储后端类型。
const (
	StorageFS     = "fs"
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageS3     = "s3"
)

// 仓库缓存模式：storage 优先读本地副本，remote 优先回源，none 不落盘。
const (
	CacheModeStorage = "storage"
	CacheModeRemote  = "remote"
	CacheModeNone    = "none"
)

// StorageConfig 描述所有仓库共享的存储后端，每个仓库使用以仓库名为前缀的子空间。
type StorageConfig struct {
	Type        string `mapstructure:"Type"`
	Path        string `mapstructure:"Path"`
	RedisURL    string `mapstructure:"RedisURL"`
	RedisPrefix string `mapstructure:"RedisPrefix"`
	S3Endpoint  string `mapstructure:"S3Endpoint"`
	S3Bucket    string `mapstructure:"S3Bucket"`
	S3AccessKey string `mapstructure:"S3AccessKey"`
	S3SecretKey string `mapstructure:"S3SecretKey"`
	S3UseSSL    bool   `mapstructure:"S3UseSSL"`
	S3Prefix    string `mapstructure:"S3Prefix"`
}

// GlobalConfig 描述全局运行时行为，所有仓库共享同一份参数。
type GlobalConfig struct {
	ListenPort      int           `mapstructure:"ListenPort"`
	LogLevel        string        `mapstructure:"LogLevel"`
	LogFormat       string        `mapstructure:"LogFormat"`
	LogFilePath     string        `mapstructure:"LogFilePath"`
	LogMaxSize      int           `mapstructure:"LogMaxSize"`
	LogMaxBackups   int           `mapstructure:"LogMaxBackups"`
	LogCompress     bool          `mapstructure:"LogCompress"`
	CacheTTL        Duration      `mapstructure:"CacheTTL"`
	UpstreamTimeout Duration      `mapstructure:"UpstreamTimeout"`
	MetricsPath     string        `mapstructure:"MetricsPath"`
	Storage         StorageConfig `mapstructure:"Storage"`
}

// RepoConfig 决定单个代理仓库如何与下游/上游交互。
type RepoConfig struct {
	Name       string   `mapstructure:"Name"`
	Domain     string   `mapstructure:"Domain"`
	Type       string   `mapstructure:"Type"`
	Upstream   string   `mapstructure:"Upstream"`
	Proxy      string   `mapstructure:"Proxy"`
	Username   string   `mapstructure:"Username"`
	Password   string   `mapstructure:"Password"`
	CacheMode  string   `mapstructure:"CacheMode"`
	Validation string   `mapstructure:"Validation"`
	CacheTTL   Duration `mapstructure:"CacheTTL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Repos  []RepoConfig `mapstructure:"Repo"`
}

// HasCredentials 表示当前仓库是否配置了完整的上游凭证。
func (r RepoConfig) HasCredentials() bool {
	return r.Username != "" && r.Password != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (r RepoConfig) AuthMode() string {
	if r.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// CredentialModes 返回所有仓库的鉴权模式摘要，例如 central:anonymous。
func CredentialModes(repos []RepoConfig) []string {
	if len(repos) == 0 {
		return nil
	}
	result := make([]string, len(repos))
	for i, repo := range repos {
		result[i] = fmt.Sprintf("%s:%s", repo.Name, repo.AuthMode())
	}
	return result
}

// StrategyOverrides 将仓库层的 TTL/Validation 配置映射为模块策略覆盖项。
func (r RepoConfig) StrategyOverrides(ttl time.Duration) hubmodule.StrategyOptions {
	opts := hubmodule.StrategyOptions{
		TTLOverride: ttl,
	}
	if mode, ok := hubmodule.ParseValidationMode(r.Validation); ok {
		opts.ValidationOverride = mode
	}
	return opts
}
