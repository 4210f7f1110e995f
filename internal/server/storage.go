package server

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/fs"
	"github.com/artipie/artipie/internal/asto/memory"
	"github.com/artipie/artipie/internal/asto/redis"
	"github.com/artipie/artipie/internal/asto/s3"
	"github.com/artipie/artipie/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStorage 根据全局存储配置创建根存储，并包一层 debug 日志。
// 返回的 io.Closer 用于释放连接类后端（如 Redis）。
func OpenStorage(cfg config.StorageConfig, logger logrus.FieldLogger) (asto.Storage, io.Closer, error) {
	var (
		storage asto.Storage
		closer  io.Closer = nopCloser{}
	)

	switch cfg.Type {
	case config.StorageMemory:
		storage = memory.New()
	case config.StorageRedis:
		store, err := redis.New(redis.Config{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix})
		if err != nil {
			return nil, nil, err
		}
		storage, closer = store, store
	case config.StorageS3:
		store, err := s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		storage = store
	case config.StorageFS, "":
		store, err := fs.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		storage = store
	default:
		return nil, nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}

	if logger != nil {
		storage = asto.Logging(storage, logger)
	}
	return storage, closer, nil
}
