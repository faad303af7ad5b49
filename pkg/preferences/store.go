package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mlcomp/mlboard/pkg/config"
)

// ErrNotFound is returned by Get for keys that were never set.
var ErrNotFound = errors.New("preference not found")

// Entry is one persisted preference. Values are stored JSON-encoded.
type Entry struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName sets the table name of Entry.
func (Entry) TableName() string {
	return "preferences"
}

// Store persists user preferences as key-value pairs.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Get decodes the value stored under key into dst. It returns
	// ErrNotFound when the key is not set.
	Get(ctx context.Context, key string, dst any) error
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Entry, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new preference Store backed by the configured
// database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "preferences"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(s.cfg.MySQL.DSN())
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening preferences database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		// Every sqlite connection would see its own ":memory:" database.
		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("running preferences migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Preferences database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Get loads and decodes the value of key.
func (s *store) Get(ctx context.Context, key string, dst any) error {
	var e Entry

	err := s.db.WithContext(ctx).Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		return fmt.Errorf("getting preference %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(e.Value), dst); err != nil {
		return fmt.Errorf("decoding preference %q: %w", key, err)
	}

	return nil
}

// Set encodes value and upserts it under key.
func (s *store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding preference %q: %w", key, err)
	}

	e := Entry{Name: key}

	result := s.db.WithContext(ctx).
		Where("name = ?", key).
		Assign(Entry{Value: string(data)}).
		FirstOrCreate(&e)
	if result.Error != nil {
		return fmt.Errorf("upserting preference %q: %w", key, result.Error)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).
		Where("name = ?", key).
		Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("deleting preference %q: %w", key, err)
	}

	return nil
}

// List returns every stored entry ordered by name.
func (s *store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Order("name ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}

	return entries, nil
}
