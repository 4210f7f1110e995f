package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler answers artifact requests for the repository bound to the request host.
type ProxyHandler interface {
	Handle(fiber.Ctx, *RepoRoute) error
}

type ProxyHandlerFunc func(fiber.Ctx, *RepoRoute) error

func (f ProxyHandlerFunc) Handle(c fiber.Ctx, route *RepoRoute) error {
	return f(c, route)
}

// AppOptions 描述单端口 Fiber 应用的依赖。
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *RepoRegistry
	Proxy      ProxyHandler
	ListenPort int
}

func (o AppOptions) validate() error {
	switch {
	case o.Logger == nil:
		return errors.New("logger is required")
	case o.Registry == nil:
		return errors.New("repo registry is required")
	case o.Proxy == nil:
		return errors.New("proxy handler is required")
	case o.ListenPort <= 0:
		return fmt.Errorf("invalid listen port: %d", o.ListenPort)
	}
	return nil
}

const (
	contextKeyRoute     = "_artipie_route"
	contextKeyRequestID = "_artipie_request_id"

	headerRequestID  = "X-Request-ID"
	maxRequestIDSize = 128
	diagnosticsRoot  = "/-/"
)

// NewApp 构建按 Host 分发到仓库的 Fiber 应用。/-/ 下的诊断路径不做 Host 匹配，
// 由调用方之后注册的路由处理。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:       "artipie",
		CaseSensitive: true,
		ErrorHandler:  jsonErrorHandler(opts.Logger),
	})
	app.Use(recover.New())
	app.Use(assignRequestID)
	app.Use(bindRoute(opts))
	app.All("/*", dispatch(opts))
	return app, nil
}

// assignRequestID 沿用客户端传入的 X-Request-ID（长度受限），否则生成新的 UUID。
func assignRequestID(c fiber.Ctx) error {
	reqID := strings.TrimSpace(c.Get(headerRequestID))
	if reqID == "" || len(reqID) > maxRequestIDSize {
		reqID = uuid.NewString()
	}
	c.Locals(contextKeyRequestID, reqID)
	c.Set(headerRequestID, reqID)
	return c.Next()
}

func bindRoute(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		if isDiagnosticsPath(c.Path()) {
			return c.Next()
		}
		host := strings.TrimSpace(requestHost(c))
		route, ok := opts.Registry.Lookup(host)
		if !ok {
			return hostUnmapped(c, opts.Logger, host, opts.ListenPort)
		}
		c.Locals(contextKeyRoute, route)
		return c.Next()
	}
}

func dispatch(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		if isDiagnosticsPath(c.Path()) {
			return c.Next()
		}
		route, ok := c.Locals(contextKeyRoute).(*RepoRoute)
		if !ok || route == nil {
			return hostUnmapped(c, opts.Logger, "", opts.ListenPort)
		}
		return opts.Proxy.Handle(c, route)
	}
}

func hostUnmapped(c fiber.Ctx, logger *logrus.Logger, host string, port int) error {
	logger.WithFields(logrus.Fields{
		"action":     "host_lookup",
		"host":       host,
		"port":       port,
		"request_id": RequestID(c),
	}).Warn("host unmapped")
	if host != "" {
		c.Set("X-Artipie-Host", host)
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "host_unmapped"})
}

// jsonErrorHandler 把未处理的错误渲染为 {"error": ...}，与代理响应保持同一格式。
func jsonErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		code := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		if status >= fiber.StatusInternalServerError {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "request_error",
				"path":       c.Path(),
				"request_id": RequestID(c),
			}).Error("unhandled request error")
		}
		return c.Status(status).JSON(fiber.Map{"error": code})
	}
}

func requestHost(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

// RequestID returns the identifier assigned by the router middleware.
func RequestID(c fiber.Ctx) string {
	reqID, _ := c.Locals(contextKeyRequestID).(string)
	return reqID
}

func isDiagnosticsPath(p string) bool {
	return strings.HasPrefix(p, diagnosticsRoot)
}
