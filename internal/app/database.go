package app

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wadesk/wadesk/config"
)

// getDatabase opens the configured database. Anything other than postgres
// falls back to an embedded sqlite file under the workdir.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	gcfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	default:
		dbfile := filepath.Join(workdir, "data", cfg.Name+".db")
		db, err = gorm.Open(sqlite.Open(dbfile), gcfg)
	}
	if err != nil {
		zap.S().Panicf("database connect failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		if cfg.MaxConn > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConn)
		}
		if cfg.IdleConn > 0 {
			sqlDB.SetMaxIdleConns(cfg.IdleConn)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db
}
