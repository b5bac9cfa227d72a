package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/wadesk/wadesk/config"
	"github.com/wadesk/wadesk/internal/instance"
	"github.com/wadesk/wadesk/internal/webhook"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// AppContext combines all provider interfaces for full application context.
// Services should depend on specific providers or this combined interface.
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()

	// Reconciliation subsystem accessors
	InstanceRepo() instance.Repository
	InstanceManager() *instance.Manager
	Reconciler() *instance.Reconciler
	WebhookTester() *webhook.Tester
}
