package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 ARTIPIE_STORAGE_S3SECRETKEY。
const EnvPrefix = "ARTIPIE"

// LoadDotEnv 依次加载 .env 文件到进程环境，已存在的变量不会被覆盖；文件缺失时忽略。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", path, err)
		}
	}
	return nil
}

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectRepoLevelPorts(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Repos {
		applyRepoDefaults(&cfg.Repos[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.Storage.Type == StorageFS {
		absStorage, err := filepath.Abs(cfg.Global.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.Storage.Path = absStorage
	}

	return &cfg, nil
}

// defaultSettings 同时作为 viper 的默认值；未在文件中出现的键只有注册过默认值
// 才能被 ARTIPIE_* 环境变量覆盖。
var defaultSettings = []struct {
	key   string
	value any
}{
	{"ListenPort", 5000},
	{"LogLevel", "info"},
	{"LogFormat", "json"},
	{"LogFilePath", ""},
	{"LogMaxSize", 100},
	{"LogMaxBackups", 10},
	{"LogCompress", true},
	{"CacheTTL", 86400},
	{"UpstreamTimeout", "30s"},
	{"MetricsPath", "/-/metrics"},
	{"Storage.Type", StorageFS},
	{"Storage.Path", "./storage"},
	{"Storage.RedisURL", ""},
	{"Storage.RedisPrefix", ""},
	{"Storage.S3Endpoint", ""},
	{"Storage.S3Bucket", ""},
	{"Storage.S3AccessKey", ""},
	{"Storage.S3SecretKey", ""},
	{"Storage.S3UseSSL", false},
	{"Storage.S3Prefix", ""},
}

func setDefaults(v *viper.Viper) {
	for _, d := range defaultSettings {
		v.SetDefault(d.key, d.value)
	}
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(24 * time.Hour)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = "json"
	}
	if g.MetricsPath == "" {
		g.MetricsPath = "/-/metrics"
	}
	g.Storage.Type = strings.ToLower(strings.TrimSpace(g.Storage.Type))
	if g.Storage.Type == "" {
		g.Storage.Type = StorageFS
	}
}

func applyRepoDefaults(r *RepoConfig) {
	if r.CacheTTL.DurationValue() < 0 {
		r.CacheTTL = Duration(0)
	}
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	r.CacheMode = strings.ToLower(strings.TrimSpace(r.CacheMode))
	if r.CacheMode == "" {
		r.CacheMode = CacheModeStorage
	}
	r.Validation = strings.ToLower(strings.TrimSpace(r.Validation))
	if r.Validation == "" {
		r.Validation = "default"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectRepoLevelPorts 拒绝仓库级 Port 字段，所有仓库共享全局 ListenPort 并按 Host 区分。
func rejectRepoLevelPorts(v *viper.Viper) error {
	raw := v.Get("Repo")
	repos, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range repos {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		for key := range m {
			if !strings.EqualFold(key, "Port") {
				continue
			}
			name := fmt.Sprintf("#%d", idx)
			for k, val := range m {
				if strings.EqualFold(k, "Name") {
					if s, ok := val.(string); ok && s != "" {
						name = s
					}
				}
			}
			return repoError(name, "Port", "不支持仓库级端口，请使用全局 ListenPort")
		}
	}

	return nil
}
