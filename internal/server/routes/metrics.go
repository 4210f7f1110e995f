package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// RegisterMetricsRoute 通过 adaptor 将 Prometheus handler 挂载到 Fiber。
func RegisterMetricsRoute(app *fiber.App, path string, handler http.Handler) {
	if app == nil || handler == nil || path == "" {
		return
	}
	app.Get(path, adaptor.HTTPHandler(handler))
}
