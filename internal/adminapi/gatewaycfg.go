package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/webserver"
)

func registerGatewayRoutes() {
	webserver.ApiGET("/gateway/config", getGatewayConfig)
	webserver.ApiPOST("/gateway/config", postGatewayConfig)
}

// maskApiKey keeps only a short prefix so the dashboard can show which key is
// active without exposing it.
func maskApiKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}

func getGatewayConfig(c echo.Context) error {
	repo := GetAppContext(c).InstanceRepo()
	cfg, err := repo.ActiveConfig(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "QUERY_ERROR", "Failed to load gateway config", err.Error())
	}
	return ok(c, map[string]interface{}{
		"server_url":       cfg.ServerURL,
		"api_key":          maskApiKey(cfg.ApiKey),
		"webhook_base_url": cfg.WebhookBaseURL,
		"configured":       cfg.Configured(),
	})
}

func postGatewayConfig(c echo.Context) error {
	var payload struct {
		ServerURL      string `json:"server_url"`
		ApiKey         string `json:"api_key"`
		WebhookBaseURL string `json:"webhook_base_url"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if payload.ServerURL == "" || payload.ApiKey == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "server_url and api_key are required", nil)
	}

	repo := GetAppContext(c).InstanceRepo()
	cfg := &domain.GatewayConfig{
		ServerURL:      strings.TrimRight(payload.ServerURL, "/"),
		ApiKey:         payload.ApiKey,
		WebhookBaseURL: payload.WebhookBaseURL,
	}
	if err := repo.SaveConfig(c.Request().Context(), cfg); err != nil {
		zap.L().Error("adminapi: save gateway config failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "SAVE_FAILED", "Failed to save gateway config", err.Error())
	}
	zap.L().Info("adminapi: gateway config updated", zap.String("server_url", cfg.ServerURL))
	return ok(c, map[string]interface{}{"saved": true})
}
