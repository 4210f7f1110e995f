package routes

import (
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/artipie/artipie/internal/hubmodule"
	"github.com/artipie/artipie/internal/server"
)

// RegisterModuleRoutes 暴露 /-/modules 诊断接口：已注册模块、模块 hooks 以及仓库绑定关系。
func RegisterModuleRoutes(app *fiber.App, registry *server.RepoRegistry) {
	if app == nil || registry == nil {
		return
	}
	group := app.Group("/-/modules")

	group.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"modules": encodeModules(hubmodule.List()),
			"repos":   encodeRepoBindings(registry.List()),
		})
	})

	group.Get("/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "module_key_required"})
		}
		meta, ok := hubmodule.Resolve(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "module_not_found"})
		}
		return c.JSON(encodeModule(meta))
	})
}

type modulePayload struct {
	Key                string               `json:"key"`
	Description        string               `json:"description"`
	SupportedProtocols []string             `json:"supported_protocols"`
	CacheStrategy      cacheStrategyPayload `json:"cache_strategy"`
	Hooks              []string             `json:"hooks,omitempty"`
}

type cacheStrategyPayload struct {
	TTLSeconds     int64  `json:"ttl_seconds"`
	ValidationMode string `json:"validation_mode"`
}

type repoBindingPayload struct {
	RepoName   string               `json:"repo_name"`
	ModuleKey  string               `json:"module_key"`
	Domain     string               `json:"domain"`
	Port       int                  `json:"port"`
	Upstream   string               `json:"upstream"`
	CacheMode  string               `json:"cache_mode"`
	AuthMode   string               `json:"auth_mode"`
	Validation cacheStrategyPayload `json:"cache_strategy"`
}

func encodeModules(mods []hubmodule.ModuleMetadata) []modulePayload {
	result := make([]modulePayload, 0, len(mods))
	for _, meta := range mods {
		result = append(result, encodeModule(meta))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

func encodeModule(meta hubmodule.ModuleMetadata) modulePayload {
	return modulePayload{
		Key:                meta.Key,
		Description:        meta.Description,
		SupportedProtocols: append([]string(nil), meta.SupportedProtocols...),
		CacheStrategy:      encodeStrategy(meta.CacheStrategy),
		Hooks:              meta.Hooks.Names(),
	}
}

func encodeStrategy(strategy hubmodule.CacheStrategyProfile) cacheStrategyPayload {
	return cacheStrategyPayload{
		TTLSeconds:     int64(strategy.TTLHint / time.Second),
		ValidationMode: string(strategy.ValidationMode),
	}
}

func encodeRepoBindings(routes []server.RepoRoute) []repoBindingPayload {
	result := make([]repoBindingPayload, 0, len(routes))
	for _, route := range routes {
		binding := repoBindingPayload{
			RepoName:   route.Config.Name,
			ModuleKey:  route.ModuleKey,
			Domain:     route.Config.Domain,
			Port:       route.ListenPort,
			CacheMode:  route.Config.CacheMode,
			AuthMode:   route.Config.AuthMode(),
			Validation: encodeStrategy(route.CacheStrategy),
		}
		if route.UpstreamURL != nil {
			binding.Upstream = route.UpstreamURL.String()
		}
		result = append(result, binding)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RepoName < result[j].RepoName })
	return result
}
