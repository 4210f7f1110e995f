package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/server"
)

// bearerChallenge 是 WWW-Authenticate: Bearer realm=...,service=...,scope=... 的解析结果。
type bearerChallenge struct {
	Realm   string
	Service string
	Scope   string
}

func (c bearerChallenge) flightKey(repo string) string {
	return repo + "|" + c.Realm + "|" + c.Service + "|" + c.Scope
}

// tokenEndpoint 把 service/scope 合并进 realm 的查询串。
func (c bearerChallenge) tokenEndpoint() (*url.URL, error) {
	if c.Realm == "" {
		return nil, errors.New("bearer realm missing")
	}
	endpoint, err := url.Parse(c.Realm)
	if err != nil {
		return nil, fmt.Errorf("invalid bearer realm: %w", err)
	}
	query := endpoint.Query()
	for name, value := range map[string]string{"service": c.Service, "scope": c.Scope} {
		if value != "" {
			query.Set(name, value)
		}
	}
	endpoint.RawQuery = query.Encode()
	return endpoint, nil
}

func parseBearerChallenge(values []string) (bearerChallenge, bool) {
	for _, raw := range values {
		scheme, rest, found := strings.Cut(strings.TrimSpace(raw), " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			continue
		}
		params := parseAuthParams(rest)
		if params["realm"] == "" {
			continue
		}
		return bearerChallenge{
			Realm:   params["realm"],
			Service: params["service"],
			Scope:   params["scope"],
		}, true
	}
	return bearerChallenge{}, false
}

// parseAuthParams 解析 k="v",k2=v2 形式的参数；不支持值中包含逗号。
func parseAuthParams(input string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return params
}

// retryAuthorization 根据上游鉴权响应计算重试使用的 Authorization 头：
// 有 Bearer 挑战时换取 token，否则回退为仓库配置的 Basic 凭证。
func (h *Handler) retryAuthorization(ctx context.Context, route *server.RepoRoute, resp *http.Response) (string, error) {
	challenge, ok := parseBearerChallenge(resp.Header.Values("Www-Authenticate"))
	if !ok {
		return basicAuthorization(route.Config.Username, route.Config.Password), nil
	}
	token, err := h.bearerToken(ctx, challenge, route)
	if err != nil {
		return "", fmt.Errorf("bearer token: %w: %w", cache.ErrUnavailable, err)
	}
	return "Bearer " + token, nil
}

// bearerToken 合并同一挑战的并发 token 请求。
func (h *Handler) bearerToken(ctx context.Context, challenge bearerChallenge, route *server.RepoRoute) (string, error) {
	value, err, _ := h.tokens.Do(challenge.flightKey(route.Config.Name), func() (any, error) {
		return h.fetchBearerToken(ctx, challenge, route)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

func (t tokenResponse) value() string {
	if t.Token != "" {
		return t.Token
	}
	return t.AccessToken
}

func (h *Handler) fetchBearerToken(ctx context.Context, challenge bearerChallenge, route *server.RepoRoute) (string, error) {
	endpoint, err := challenge.tokenEndpoint()
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return "", err
	}
	if route.Config.HasCredentials() {
		req.SetBasicAuth(route.Config.Username, route.Config.Password)
	}

	resp, err := h.clients.For(route.ProxyURL).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint %s returned %d: %s",
			endpoint.Redacted(), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.value() == "" {
		return "", errors.New("token response missing token value")
	}
	return parsed.value(), nil
}

func basicAuthorization(username, password string) string {
	if username == "" || password == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// shouldRetryAuth：匿名仓库遇到 Bearer 挑战（如 Docker Hub）同样需要换取 token；
// 429 只对带凭证的仓库重试。
func shouldRetryAuth(route *server.RepoRoute, resp *http.Response) bool {
	if route == nil || resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if route.Config.HasCredentials() {
			return true
		}
		_, ok := parseBearerChallenge(resp.Header.Values("Www-Authenticate"))
		return ok
	case http.StatusTooManyRequests:
		return route.Config.HasCredentials()
	}
	return false
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusTooManyRequests
}

// logAuth 记录鉴权重试（Warn）或重试后仍失败（Error）。
func (h *Handler) logAuth(route *server.RepoRoute, target *url.URL, requestID string, status int, failed bool) {
	entry := h.routeLogger(route, requestID).WithFields(logrus.Fields{
		"upstream":        target.Redacted(),
		"upstream_status": status,
		"auth_mode":       route.Config.AuthMode(),
	})
	if failed {
		entry.WithFields(logrus.Fields{"action": "proxy", "error": "upstream_auth_failed"}).Error("proxy_auth_failed")
		return
	}
	entry.WithFields(logrus.Fields{"action": "proxy_retry", "reason": "auth_retry"}).Warn("proxy_auth_retry")
}
