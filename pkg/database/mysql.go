// Package database 负责持久化存储连接的建立与关闭。
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linebot-relay-go/internal/config"
	"linebot-relay-go/pkg/log"
)

// OpenMySQL 打开 MySQL 连接并配置连接池。
// 返回的 *gorm.DB 由调用方持有，进程退出前调用 CloseMySQL 释放。
func OpenMySQL(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 100
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
	return db, nil
}

// CloseMySQL 关闭底层连接池。
func CloseMySQL(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("failed to get sql.DB on close", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("failed to close MySQL", err)
	}
}
