package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// document is one logical file stored as a row.
type document struct {
	Name      string `gorm:"primaryKey"`
	Body      []byte `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "board_documents" }

// PostgresBackend stores documents in Postgres and serializes writers with
// a session-level advisory lock, so several server processes can share one
// board.
type PostgresBackend struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	lockKey int64
}

// OpenPostgresBackend connects, migrates the documents table and derives
// the advisory lock key from namespace.
func OpenPostgresBackend(ctx context.Context, dsn, namespace string) (*PostgresBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&document{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate board_documents: %w", err)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte("board:" + namespace))
	return &PostgresBackend{db: db, sqlDB: sqlDB, lockKey: int64(h.Sum64())}, nil
}

func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var doc document
	err := b.db.WithContext(ctx).Where("name = ?", name).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("load "+name, err)
	}
	return doc.Body, nil
}

func (b *PostgresBackend) Save(ctx context.Context, name string, data []byte) error {
	doc := document{Name: name, Body: data, UpdatedAt: time.Now().UTC()}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return classify("save "+name, err)
	}
	return nil
}

// Lock pins a pool connection and takes the advisory lock on it; unlock
// releases the lock on that same connection before returning it.
func (b *PostgresBackend) Lock(ctx context.Context) (func(), error) {
	conn, err := b.sqlDB.Conn(ctx)
	if err != nil {
		return nil, classify("acquire lock connection", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", b.lockKey); err != nil {
		_ = conn.Close()
		return nil, classify("advisory lock", err)
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", b.lockKey)
		_ = conn.Close()
	}, nil
}

func (b *PostgresBackend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

// classify annotates Postgres errors with their SQLSTATE.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: postgres %s: %w", op, pgErr.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
