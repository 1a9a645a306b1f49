package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"linebot-relay-go/internal/config"
	"linebot-relay-go/internal/model"
	"linebot-relay-go/pkg/database"
)

// stores 持有进程级的连接句柄，由 open 创建、close 释放。
type stores struct {
	db  *gorm.DB
	rdb *redis.Client
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	db, err := database.OpenMySQL(cfg.Database.MySQL)
	if err != nil {
		return nil, err
	}
	s := &stores{db: db}

	if cfg.Database.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rdb, err := database.OpenRedis(pingCtx, cfg.Database.Redis)
		if err != nil {
			s.close()
			return nil, err
		}
		s.rdb = rdb
	}
	return s, nil
}

func (s *stores) migrate() error {
	if err := s.db.AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *stores) close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	database.CloseMySQL(s.db)
}
