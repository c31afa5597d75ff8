package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store 持久化接口
type Store interface {
	// 指标预设
	SavePreset(ctx context.Context, preset *IndicatorPreset) error
	GetPreset(ctx context.Context, name string) (*IndicatorPreset, error)
	ListPresets(ctx context.Context) ([]*IndicatorPreset, error)
	DeletePreset(ctx context.Context, name string) error

	// 预警规则与记录
	SaveAlertRule(ctx context.Context, rule *AlertRule) error
	ListAlertRules(ctx context.Context, onlyEnabled bool) ([]*AlertRule, error)
	DeleteAlertRule(ctx context.Context, id uint) error
	SaveAlertRecord(ctx context.Context, record *AlertRecord) error
	ListAlertRecords(ctx context.Context, limit int) ([]*AlertRecord, error)

	// 回测报告
	SaveBacktestReport(ctx context.Context, report *BacktestReport) error
	ListBacktestReports(ctx context.Context, indicator string, limit int) ([]*BacktestReport, error)

	Close() error
}

// Config 数据库配置
type Config struct {
	Type            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// NewStore 根据配置创建存储实例
func NewStore(config *Config) (Store, error) {
	switch config.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
		return newGormStore(config)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// gormStore GORM 实现
type gormStore struct {
	db *gorm.DB
}

func newGormStore(config *Config) (*gormStore, error) {
	var dialector gorm.Dialector
	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	}

	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&IndicatorPreset{},
		&AlertRule{},
		&AlertRecord{},
		&BacktestReport{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &gormStore{db: db}, nil
}

// SavePreset 保存或更新同名预设
func (g *gormStore) SavePreset(ctx context.Context, preset *IndicatorPreset) error {
	var existing IndicatorPreset
	err := g.db.WithContext(ctx).Where("name = ?", preset.Name).First(&existing).Error
	if err == nil {
		preset.ID = existing.ID
		preset.CreatedAt = existing.CreatedAt
		return g.db.WithContext(ctx).Save(preset).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return g.db.WithContext(ctx).Create(preset).Error
}

// GetPreset 按名称查询预设
func (g *gormStore) GetPreset(ctx context.Context, name string) (*IndicatorPreset, error) {
	var preset IndicatorPreset
	if err := g.db.WithContext(ctx).Where("name = ?", name).First(&preset).Error; err != nil {
		return nil, err
	}
	return &preset, nil
}

// ListPresets 列出全部预设
func (g *gormStore) ListPresets(ctx context.Context) ([]*IndicatorPreset, error) {
	var presets []*IndicatorPreset
	if err := g.db.WithContext(ctx).Order("name ASC").Find(&presets).Error; err != nil {
		return nil, err
	}
	return presets, nil
}

// DeletePreset 按名称删除预设
func (g *gormStore) DeletePreset(ctx context.Context, name string) error {
	return g.db.WithContext(ctx).Where("name = ?", name).Delete(&IndicatorPreset{}).Error
}

// SaveAlertRule 保存预警规则
func (g *gormStore) SaveAlertRule(ctx context.Context, rule *AlertRule) error {
	return g.db.WithContext(ctx).Save(rule).Error
}

// ListAlertRules 列出预警规则
func (g *gormStore) ListAlertRules(ctx context.Context, onlyEnabled bool) ([]*AlertRule, error) {
	query := g.db.WithContext(ctx).Model(&AlertRule{})
	if onlyEnabled {
		query = query.Where("enabled = ?", true)
	}

	var rules []*AlertRule
	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// DeleteAlertRule 删除预警规则
func (g *gormStore) DeleteAlertRule(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Delete(&AlertRule{}, id).Error
}

// SaveAlertRecord 保存触发记录
func (g *gormStore) SaveAlertRecord(ctx context.Context, record *AlertRecord) error {
	return g.db.WithContext(ctx).Create(record).Error
}

// ListAlertRecords 按时间倒序列出触发记录
func (g *gormStore) ListAlertRecords(ctx context.Context, limit int) ([]*AlertRecord, error) {
	query := g.db.WithContext(ctx).Model(&AlertRecord{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*AlertRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SaveBacktestReport 保存回测报告
func (g *gormStore) SaveBacktestReport(ctx context.Context, report *BacktestReport) error {
	return g.db.WithContext(ctx).Create(report).Error
}

// ListBacktestReports 按时间倒序列出回测报告
func (g *gormStore) ListBacktestReports(ctx context.Context, indicator string, limit int) ([]*BacktestReport, error) {
	query := g.db.WithContext(ctx).Model(&BacktestReport{}).Order("created_at DESC")
	if indicator != "" {
		query = query.Where("indicator = ?", indicator)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reports []*BacktestReport
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Close 关闭数据库连接
func (g *gormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
