package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/config"
	"github.com/artipie/artipie/internal/logging"
	"github.com/artipie/artipie/internal/metrics"
	"github.com/artipie/artipie/internal/proxy"
	"github.com/artipie/artipie/internal/server"
	"github.com/artipie/artipie/internal/server/routes"
	"github.com/artipie/artipie/internal/version"
)

const shutdownTimeout = 15 * time.Second

type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 返回进程退出码：0 正常，1 配置或启动失败。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	summary := configSummary(cfg, opts)
	if opts.checkOnly {
		summary["action"] = "check_config"
		summary["result"] = "ok"
		logger.WithFields(summary).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, logger, summary); err != nil {
		fmt.Fprintf(stdErr, "%v\n", err)
		return 1
	}
	return 0
}

func configSummary(cfg *config.Config, opts cliOptions) logrus.Fields {
	fields := logging.BaseFields("startup", opts.configPath)
	fields["repos"] = len(cfg.Repos)
	fields["storage"] = cfg.Global.Storage.Type
	fields["listen_port"] = cfg.Global.ListenPort
	fields["credentials"] = config.CredentialModes(cfg.Repos)
	fields["version"] = version.Full()
	return fields
}

// serve 依次构建 存储 → 仓库路由表 → 代理 handler → Fiber 应用，直到 ctx 取消后优雅退出。
func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger, summary logrus.Fields) error {
	storage, closer, err := server.OpenStorage(cfg.Global.Storage, logger)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	defer closer.Close()

	m := metrics.New()
	registry, err := server.NewRepoRegistry(cfg, server.RegistryOptions{
		Storage: storage,
		Observer: func(repo string) cache.Observer {
			return cache.Observers(logging.NewCacheObserver(logger, repo), m.CacheObserver(repo))
		},
	})
	if err != nil {
		return fmt.Errorf("构建仓库路由表失败: %w", err)
	}

	handler := proxy.NewHandler(server.NewUpstreamClient(cfg), logger, m)
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Proxy:      proxy.NewForwarder(handler, logger),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return fmt.Errorf("构建 HTTP 服务失败: %w", err)
	}
	routes.RegisterModuleRoutes(app, registry)
	routes.RegisterCacheRoutes(app, registry)
	routes.RegisterMetricsRoute(app, cfg.Global.MetricsPath, m.Handler())

	logger.WithFields(summary).Info("配置加载完成")
	return listen(ctx, app, cfg.Global.ListenPort, cfg.Global.MetricsPath, logger)
}

func listen(ctx context.Context, app *fiber.App, port int, metricsPath string, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"action":  "listen",
			"port":    port,
			"metrics": metricsPath,
		}).Info("Fiber 服务启动")
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.WithField("action", "shutdown").Info("收到退出信号，等待进行中的请求完成")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("HTTP 服务关闭失败: %w", err)
	}
	return nil
}

// parseCLIFlags 解析参数；配置路径优先级为 --config > ARTIPIE_CONFIG > ./config.toml。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("artipie", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	if opts.configPath == "" {
		opts.configPath = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	if opts.configPath == "" {
		opts.configPath = "config.toml"
	}
	return opts, nil
}
