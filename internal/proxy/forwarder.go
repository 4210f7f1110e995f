package proxy

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/logging"
	"github.com/artipie/artipie/internal/server"
)

// Forwarder 是 server 与缓存 Handler 之间的保护层：handler 缺失或 panic 时
// 输出带 request id 的 500 响应，不让单个请求拖垮整个进程。
type Forwarder struct {
	next   server.ProxyHandler
	logger *logrus.Logger
}

// NewForwarder wraps next. A nil logger disables failure logging.
func NewForwarder(next server.ProxyHandler, logger *logrus.Logger) *Forwarder {
	return &Forwarder{next: next, logger: logger}
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx, route *server.RepoRoute) (err error) {
	requestID := server.RequestID(c)
	if f.next == nil {
		return f.fail(c, route, requestID, "proxy_handler_missing", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			err = f.fail(c, route, requestID, "proxy_handler_panic", fmt.Errorf("panic: %v", r))
		}
	}()
	return f.next.Handle(c, route)
}

func (f *Forwarder) fail(c fiber.Ctx, route *server.RepoRoute, requestID, code string, cause error) error {
	if f.logger != nil {
		entry := f.logger.WithFields(forwarderFields(route, requestID, code))
		if cause != nil {
			entry.WithField("stack", string(debug.Stack())).Error(cause.Error())
		} else {
			entry.Error("proxy handler unavailable")
		}
	}
	setRequestIDHeader(c, requestID)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": code})
}

func forwarderFields(route *server.RepoRoute, requestID, code string) logrus.Fields {
	var fields logrus.Fields
	if route == nil {
		fields = logging.RequestFields("", "", "", "", "", outcomeBypass)
	} else {
		fields = logging.RequestFields(
			route.Config.Name,
			route.Config.Domain,
			route.Config.Type,
			route.Config.AuthMode(),
			route.ModuleKey,
			outcomeBypass,
		)
	}
	fields["action"] = "proxy"
	fields["error"] = code
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
