// Package store persists shop settings, product CSV mappings and the pending
// review queue. Every call goes through the retry wrapper so a dropped
// database connection is retried before the caller sees an error.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/JonMunkholm/reviewgallery/internal/config"
)

// Store is the gorm-backed repository used by the service layer.
type Store struct {
	db    *gorm.DB
	retry RetryPolicy
	pool  *pgxpool.Pool
}

// New wraps an open gorm handle.
func New(db *gorm.DB, policy RetryPolicy) *Store {
	return &Store{db: db, retry: policy}
}

// Open connects to the configured database. Postgres goes through a pgxpool
// sized from cfg; sqlite is meant for local runs and tests.
func Open(ctx context.Context, cfg config.DatabaseConfig, policy RetryPolicy) (*Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return OpenSQLite(cfg.URL, policy)
	case "mysql":
		return OpenMySQL(ctx, cfg, policy)
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := Retry(ctx, policy, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	s := New(db, policy)
	s.pool = pool
	return s, nil
}

// OpenMySQL opens a MySQL or MariaDB database. cfg.URL is a go-sql-driver
// DSN such as "user:pass@tcp(host:3306)/reviews". parseTime is forced on so
// timestamps scan into time.Time.
func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig, policy RetryPolicy) (*Store, error) {
	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	dsn.ParseTime = true

	db, err := Retry(ctx, policy, func() (*gorm.DB, error) {
		db, err := gorm.Open(gormmysql.New(gormmysql.Config{DSN: dsn.FormatDSN(), DSNConfig: dsn}), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MinConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	return New(db, policy), nil
}

// OpenSQLite opens a sqlite database at dsn. ":memory:" databases are pinned
// to one connection so every query sees the same schema.
func OpenSQLite(dsn string, policy RetryPolicy) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, policy), nil
}

// Migrate creates or updates the three tables and their unique indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return RetryExec(ctx, s.retry, func() error {
		return s.db.WithContext(ctx).AutoMigrate(&ShopSetting{}, &ProductCsvMapping{}, &PendingReview{})
	})
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return RetryExec(ctx, s.retry, func() error {
		return sqlDB.PingContext(ctx)
	})
}

// Close releases the connection and the pool behind it.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database connection: %w", err)
	}
	err = sqlDB.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Setting returns the settings of shop, or nil when none were saved yet.
func (s *Store) Setting(ctx context.Context, shop string) (*ShopSetting, error) {
	return Retry(ctx, s.retry, func() (*ShopSetting, error) {
		var rows []ShopSetting
		if err := s.db.WithContext(ctx).Where("shop = ?", shop).Limit(1).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return &rows[0], nil
	})
}

// UpsertSetting inserts or replaces every field of the shop's settings.
func (s *Store) UpsertSetting(ctx context.Context, setting *ShopSetting) error {
	return RetryExec(ctx, s.retry, func() error {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"csv_url", "heading", "star_color", "layout_style", "show_verified_badge",
				"rating", "review_count", "rating_source", "form_submit_url", "updated_at",
			}),
		}).Create(setting).Error
		if err != nil {
			return fmt.Errorf("upsert settings: %w", err)
		}
		return nil
	})
}

// Mappings lists the shop's product CSV mappings, most recently updated first.
func (s *Store) Mappings(ctx context.Context, shop string) ([]ProductCsvMapping, error) {
	return Retry(ctx, s.retry, func() ([]ProductCsvMapping, error) {
		var rows []ProductCsvMapping
		err := s.db.WithContext(ctx).
			Where("shop = ?", shop).
			Order("updated_at desc").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("list product csvs: %w", err)
		}
		return rows, nil
	})
}

// Mapping returns the mapping of one product, or nil when there is none.
func (s *Store) Mapping(ctx context.Context, shop, productID string) (*ProductCsvMapping, error) {
	return Retry(ctx, s.retry, func() (*ProductCsvMapping, error) {
		var rows []ProductCsvMapping
		err := s.db.WithContext(ctx).
			Where("shop = ? AND product_id = ?", shop, productID).
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load product csv: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return &rows[0], nil
	})
}

// UpsertMapping saves m keyed by (shop, product_id) and returns the stored row.
// An existing row keeps its id and created_at.
func (s *Store) UpsertMapping(ctx context.Context, m *ProductCsvMapping) (*ProductCsvMapping, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := RetryExec(ctx, s.retry, func() error {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_title", "product_image", "csv_url", "rating", "review_count",
				"rating_source", "submit_url", "updated_at",
			}),
		}).Create(m).Error
		if err != nil {
			return fmt.Errorf("upsert product csv: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Mapping(ctx, m.Shop, m.ProductID)
}

// DeleteMapping removes one product's mapping. Pending reviews of the product
// are left alone. It reports whether a row was removed.
func (s *Store) DeleteMapping(ctx context.Context, shop, productID string) (bool, error) {
	return Retry(ctx, s.retry, func() (bool, error) {
		res := s.db.WithContext(ctx).
			Where("shop = ? AND product_id = ?", shop, productID).
			Delete(&ProductCsvMapping{})
		if res.Error != nil {
			return false, fmt.Errorf("delete product csv: %w", res.Error)
		}
		return res.RowsAffected > 0, nil
	})
}

// InsertPendingIfAbsent creates r unless a review with the same identity
// exists. Existing rows are never modified. It reports whether r was created.
func (s *Store) InsertPendingIfAbsent(ctx context.Context, r *PendingReview) (bool, error) {
	if r.SeenAt.IsZero() {
		r.SeenAt = time.Now()
	}
	return Retry(ctx, s.retry, func() (bool, error) {
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r)
		if res.Error != nil {
			return false, fmt.Errorf("insert pending review %s: %w", r.ID, res.Error)
		}
		return res.RowsAffected > 0, nil
	})
}

// PendingReviews lists the shop's queue, newest first.
func (s *Store) PendingReviews(ctx context.Context, shop string) ([]PendingReview, error) {
	return Retry(ctx, s.retry, func() ([]PendingReview, error) {
		var rows []PendingReview
		err := s.db.WithContext(ctx).
			Where("shop = ?", shop).
			Order("seen_at desc").
			Order("id").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("list pending reviews: %w", err)
		}
		return rows, nil
	})
}

// PendingReview returns one queued review of shop, or nil when absent.
func (s *Store) PendingReview(ctx context.Context, shop, id string) (*PendingReview, error) {
	return Retry(ctx, s.retry, func() (*PendingReview, error) {
		var rows []PendingReview
		err := s.db.WithContext(ctx).
			Where("shop = ? AND id = ?", shop, id).
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load pending review: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return &rows[0], nil
	})
}

// DeletePending removes one queued review and reports whether it existed.
func (s *Store) DeletePending(ctx context.Context, shop, id string) (bool, error) {
	return Retry(ctx, s.retry, func() (bool, error) {
		res := s.db.WithContext(ctx).
			Where("shop = ? AND id = ?", shop, id).
			Delete(&PendingReview{})
		if res.Error != nil {
			return false, fmt.Errorf("delete pending review: %w", res.Error)
		}
		return res.RowsAffected > 0, nil
	})
}

// CountPending returns the length of the shop's queue.
func (s *Store) CountPending(ctx context.Context, shop string) (int, error) {
	return Retry(ctx, s.retry, func() (int, error) {
		var n int64
		err := s.db.WithContext(ctx).
			Model(&PendingReview{}).
			Where("shop = ?", shop).
			Count(&n).Error
		if err != nil {
			return 0, fmt.Errorf("count pending reviews: %w", err)
		}
		return int(n), nil
	})
}
