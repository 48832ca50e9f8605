package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/qs3c/regflow_go_server/config"
)

// NewHTTPClient 构造访问后端的 HTTP 客户端。
// 配置了 ClientID 时使用 client credentials 换取 token 并自动续期，否则返回普通客户端。
func NewHTTPClient(ctx context.Context, cfg config.BackendConfig) *http.Client {
	if cfg.ClientID == "" || cfg.TokenURL == "" {
		return &http.Client{Timeout: cfg.Timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout
	return client
}
