package proxy

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/artipie/artipie/internal/config"
	"github.com/artipie/artipie/internal/server"
)

const requestIDKey = "_artipie_request_id"

type forwarderCase struct {
	app    *fiber.App
	ctx    fiber.Ctx
	logBuf *bytes.Buffer
	logger *logrus.Logger
}

func newForwarderCase(t *testing.T, requestID string) *forwarderCase {
	t.Helper()
	app := fiber.New()
	ctx := app.AcquireCtx(new(fasthttp.RequestCtx))
	ctx.Locals(requestIDKey, requestID)
	logger := logrus.New()
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	t.Cleanup(func() {
		app.ReleaseCtx(ctx)
		_ = app.Shutdown()
	})
	return &forwarderCase{app: app, ctx: ctx, logBuf: buf, logger: logger}
}

func (fc *forwarderCase) assertFailure(t *testing.T, code, requestID string) {
	t.Helper()
	if status := fc.ctx.Response().StatusCode(); status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body := string(fc.ctx.Response().Body()); !strings.Contains(body, code) {
		t.Fatalf("expected body to mention %s, got %s", code, body)
	}
	if got := string(fc.ctx.Response().Header.Peek("X-Request-ID")); got != requestID {
		t.Fatalf("expected request id header %s, got %s", requestID, got)
	}
	logs := fc.logBuf.String()
	if !strings.Contains(logs, code) || !strings.Contains(logs, requestID) {
		t.Fatalf("expected log to include %s and %s, got %s", code, requestID, logs)
	}
}

func TestForwarderMissingHandler(t *testing.T) {
	fc := newForwarderCase(t, "missing-req")
	forwarder := NewForwarder(nil, fc.logger)

	if err := forwarder.Handle(fc.ctx, testRoute()); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	fc.assertFailure(t, "proxy_handler_missing", "missing-req")
}

func TestForwarderHandlerPanic(t *testing.T) {
	fc := newForwarderCase(t, "panic-req")
	forwarder := NewForwarder(server.ProxyHandlerFunc(func(fiber.Ctx, *server.RepoRoute) error {
		panic("boom")
	}), fc.logger)

	if err := forwarder.Handle(fc.ctx, testRoute()); err != nil {
		t.Fatalf("forwarder.Handle returned unexpected error: %v", err)
	}
	fc.assertFailure(t, "proxy_handler_panic", "panic-req")
	if !strings.Contains(fc.logBuf.String(), "boom") {
		t.Fatalf("expected panic value in log, got %s", fc.logBuf.String())
	}
}

func TestForwarderPassesThrough(t *testing.T) {
	fc := newForwarderCase(t, "ok-req")
	sentinel := errors.New("handled")
	var seen *server.RepoRoute
	forwarder := NewForwarder(server.ProxyHandlerFunc(func(_ fiber.Ctx, route *server.RepoRoute) error {
		seen = route
		return sentinel
	}), fc.logger)

	route := testRoute()
	if err := forwarder.Handle(fc.ctx, route); !errors.Is(err, sentinel) {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}
	if seen != route {
		t.Fatalf("route was not forwarded")
	}
	if fc.logBuf.Len() != 0 {
		t.Fatalf("successful forwarding should not log, got %s", fc.logBuf.String())
	}
}

func testRoute() *server.RepoRoute {
	return &server.RepoRoute{
		Config: config.RepoConfig{
			Name:   "test",
			Domain: "test.local",
			Type:   "files",
		},
		ModuleKey: "files",
	}
}
