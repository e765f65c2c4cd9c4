package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "cadenza_schema_migrations"

// 多实例同时启动时由 advisory lock 串行化，等待超过该时长放弃
const migrationLockTimeout = 30 * time.Second

// migrateLogger 适配 migrate.Logger
type migrateLogger struct{ l *zap.SugaredLogger }

func (m migrateLogger) Printf(format string, v ...interface{}) {
	m.l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (m migrateLogger) Verbose() bool { return false }

func newMigrate(db *sql.DB, logger *zap.Logger) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("加载迁移文件失败: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("创建迁移驱动失败: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("初始化迁移实例失败: %w", err)
	}
	m.Log = migrateLogger{l: logger.Named("migrate").Sugar()}
	m.LockTimeout = migrationLockTimeout
	return m, nil
}

// RunMigrations 应用全部未执行的迁移
// dirty 状态说明上次迁移中途失败，需要人工修复，直接返回错误拒绝启动
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrate(db, logger)
	if err != nil {
		return err
	}

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("数据库迁移处于 dirty 状态，请人工修复后重启")
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	logger.Info("数据库迁移完成", zap.Uint("version", version), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ResetMigrations 回滚全部迁移，仅供集成测试清库
func ResetMigrations(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrate(db, logger)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("回滚迁移失败: %w", err)
	}
	return nil
}
