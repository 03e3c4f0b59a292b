package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

// Open 按配置创建连接池，并确认数据库可以连接
func Open(cfg *config.Config) (*sql.DB, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 不会立即建立连接
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}

	return dbpool, nil
}
