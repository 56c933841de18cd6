package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one stored value.
type Entry struct {
	Namespace string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"index;not null"`
}

// TableName pins the table name shared with the postgres migrations.
func (Entry) TableName() string { return "storage_entries" }

// SQLStore keeps entries in SQLite through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens the SQLite database at dsn and migrates the schema.
func NewSQLStore(dsn string) (*SQLStore, error) {
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// ensureDirForSQLite creates the parent dir for a file-backed DSN.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// Get implements Store
func (s *SQLStore) Get(ctx context.Context, ns, key string) (string, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("namespace = ? AND key = ?", ns, key).Take(&e).Error
	switch {
	case err == nil:
		return e.Value, true, nil
	case err == gorm.ErrRecordNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
}

// Set implements Store
func (s *SQLStore) Set(ctx context.Context, ns, key, value string) error {
	e := Entry{Namespace: ns, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", ns, key, err)
	}
	return nil
}

// Remove implements Store
func (s *SQLStore) Remove(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("namespace = ? AND key IN ?", ns, keys).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("remove from %s: %w", ns, err)
	}
	return nil
}

// Namespaces implements Store
func (s *SQLStore) Namespaces(ctx context.Context) ([]Namespace, error) {
	var rows []Entry
	if err := s.db.WithContext(ctx).Select("namespace", "updated_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return latestPerNamespace(rows), nil
}

// Purge implements Store
func (s *SQLStore) Purge(ctx context.Context, ns string) error {
	if err := s.db.WithContext(ctx).Where("namespace = ?", ns).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("purge %s: %w", ns, err)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func latestPerNamespace(rows []Entry) []Namespace {
	latest := make(map[string]time.Time)
	order := []string{}
	for _, r := range rows {
		t, seen := latest[r.Namespace]
		if !seen {
			order = append(order, r.Namespace)
		}
		if !seen || r.UpdatedAt.After(t) {
			latest[r.Namespace] = r.UpdatedAt
		}
	}

	out := make([]Namespace, 0, len(order))
	for _, ns := range order {
		out = append(out, Namespace{Name: ns, UpdatedAt: latest[ns]})
	}
	return out
}
