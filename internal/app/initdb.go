package app

import (
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/pkg/common"
)

type configSchema struct {
	Key         string
	Default     string
	Description string
}

// defaultSettings are seeded on first start; existing values are never
// overwritten.
var defaultSettings = []configSchema{
	{"reconcile.poll_enabled", "true", "Enable the background reconciliation sweep"},
	{"reconcile.force_disconnect", "true", "Force instances to disconnected when the gateway cannot confirm their state"},
	{"webhook.default_events", "MESSAGES_UPSERT,MESSAGES_UPDATE,CONNECTION_UPDATE", "Gateway events subscribed on newly created instances"},
	{"system.oprlog_retention_days", "365", "Retention period for operation logs"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range defaultSettings {
		category, name := splitConfigKey(schema.Key)
		if category == "" {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

func splitConfigKey(key string) (category, name string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return "", ""
}

// checkGatewayConfig seeds the gateway configuration from the environment on
// first start so a containerized deploy comes up already wired.
func (a *Application) checkGatewayConfig() {
	serverURL := os.Getenv("WADESK_GATEWAY_URL")
	apiKey := os.Getenv("WADESK_GATEWAY_APIKEY")
	if serverURL == "" || apiKey == "" {
		return
	}

	var existing domain.GatewayConfig
	err := a.gormDB.Order("id DESC").First(&existing).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}

	cfg := &domain.GatewayConfig{
		ID:             common.UUIDint64(),
		ServerURL:      serverURL,
		ApiKey:         apiKey,
		WebhookBaseURL: os.Getenv("WADESK_GATEWAY_WEBHOOK_BASE"),
		Active:         true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := a.gormDB.Create(cfg).Error; err != nil {
		zap.L().Error("failed to seed gateway config", zap.Error(err))
		return
	}
	zap.L().Info("initialized gateway config from environment",
		zap.String("server_url", serverURL))
}
