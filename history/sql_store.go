package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallRecord is the table row for one call. Queryable columns are split out;
// the full call lives in Data as JSON.
type CallRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	Status     string `gorm:"size:16;index"`
	NumReasks  int
	ReasksUsed int
	ErrorCode  string    `gorm:"size:64"`
	Data       []byte    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
}

// TableName implements gorm's tabler.
func (CallRecord) TableName() string { return "guardflow_calls" }

// SQLStore persists calls through gorm. Supports PostgreSQL, MySQL and SQLite.
type SQLStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenDialector maps a driver name to its gorm dialector.
func OpenDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite", "sqlite3", "":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", driver)
	}
}

// NewSQLStore opens the database, configures the pool and migrates the table.
func NewSQLStore(cfg SQLStoreConfig, logger *zap.Logger) (*SQLStore, error) {
	dialector, err := OpenDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	return NewSQLStoreWithDB(db, logger)
}

// NewSQLStoreWithDB uses an existing gorm handle and migrates the table.
func NewSQLStoreWithDB(db *gorm.DB, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&CallRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &SQLStore{db: db, logger: logger.With(zap.String("component", "history_sql"))}, nil
}

func toRecord(c *Call) (*CallRecord, error) {
	data, err := encode(c)
	if err != nil {
		return nil, err
	}
	rec := &CallRecord{
		ID:         c.ID,
		Status:     string(c.Status),
		NumReasks:  c.NumReasks,
		ReasksUsed: c.ReasksUsed,
		ErrorCode:  string(c.ErrorCode),
		Data:       data,
		CreatedAt:  c.CreatedAt,
	}
	if !c.FinishedAt.IsZero() {
		t := c.FinishedAt
		rec.FinishedAt = &t
	}
	return rec, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, call *Call) error {
	if call == nil || call.ID == "" {
		return fmt.Errorf("save call: missing id")
	}
	rec, err := toRecord(call)
	if err != nil {
		return fmt.Errorf("save call %s: %w", call.ID, err)
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
	if err != nil {
		s.logger.Warn("save call failed", zap.String("call_id", call.ID), zap.Error(err))
		return fmt.Errorf("save call %s: %w", call.ID, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*Call, error) {
	var rec CallRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get call %s: %w", id, err)
	}
	return decode(rec.Data)
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*Call, error) {
	q := s.db.WithContext(ctx).Model(&CallRecord{}).Order("created_at DESC").Order("id DESC")
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []CallRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	out := make([]*Call, 0, len(recs))
	for _, r := range recs {
		c, err := decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("decode call %s: %w", r.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&CallRecord{}).Error
}

// Close implements Store.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
