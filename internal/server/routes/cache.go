package routes

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/server"
)

// maxListedKeys 限制单次返回的缓存条目数量。
const maxListedKeys = 1000

// RegisterCacheRoutes 暴露 /-/cache/:repo 诊断接口，列出仓库已缓存的 key，
// 可选 prefix 查询参数缩小范围。
func RegisterCacheRoutes(app *fiber.App, registry *server.RepoRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/cache/:repo", func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("repo"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repo_not_found"})
		}

		prefix := asto.NewKey(strings.TrimSpace(c.Query("prefix")))
		keys, err := route.Storage.List(c.Context(), prefix)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage_list_failed"})
		}

		truncated := false
		if len(keys) > maxListedKeys {
			keys = keys[:maxListedKeys]
			truncated = true
		}
		items := make([]string, 0, len(keys))
		for _, key := range keys {
			items = append(items, key.String())
		}
		return c.JSON(fiber.Map{
			"repo":      route.Config.Name,
			"prefix":    prefix.String(),
			"keys":      items,
			"truncated": truncated,
		})
	})
}
