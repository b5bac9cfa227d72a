package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/domain"
)

const configCacheTTL = 30 * time.Second

// ConfigManager reads system settings from the sys_config table with a short
// in-memory cache in front of the database.
type ConfigManager struct {
	app *Application

	mu       sync.Mutex
	cache    map[string]string
	cachedAt time.Time
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{app: app, cache: make(map[string]string)}
}

func (m *ConfigManager) getValue(category, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.cachedAt) > configCacheTTL {
		m.cache = make(map[string]string)
		m.cachedAt = time.Now()
	}
	key := category + "." + name
	if v, ok := m.cache[key]; ok {
		return v
	}

	var cfg domain.SysConfig
	err := m.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		return ""
	}
	m.cache[key] = cfg.Value
	return cfg.Value
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.getValue(category, name)
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.getValue(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.getValue(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.getValue(category, name))
}

// SetValue writes a setting and invalidates the cache entry.
func (m *ConfigManager) SetValue(category, name, value string) error {
	var cfg domain.SysConfig
	err := m.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		cfg = domain.SysConfig{Type: category, Name: name, Value: value}
		err = m.app.gormDB.Create(&cfg).Error
	} else {
		err = m.app.gormDB.Model(&domain.SysConfig{}).
			Where("id = ?", cfg.ID).Update("value", value).Error
	}
	if err != nil {
		zap.L().Error("save setting failed",
			zap.String("category", category),
			zap.String("name", name),
			zap.Error(err))
		return err
	}

	m.mu.Lock()
	delete(m.cache, category+"."+name)
	m.mu.Unlock()
	return nil
}
