package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"ekb/config"
	"ekb/internal/domain"
	"ekb/internal/logger"
)

type openOptions struct {
	allowDimensionChange bool
}

// Option customizes Open.
type Option func(*openOptions)

// AllowDimensionChange opens a corpus built with a different embedding
// dimension so it can be cleared. Search and ingestion on such a store are
// unsafe until Clear has run.
func AllowDimensionChange() Option {
	return func(o *openOptions) { o.allowDimensionChange = true }
}

// Open connects to the configured SQL backend and migrates the schema. A
// corpus whose recorded embedding dimension differs from dimension is
// rejected with domain.ErrDimensionMismatch.
func Open(cfg config.DatabaseConfig, dimension int, log *logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	storeLog := log.With("component", "SQLStore", "driver", cfg.Driver)

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", cfg.Driver)
	}

	storeLog.Info("Connecting to database...")
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		storeLog.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: cfg.Driver, dimension: dimension, log: storeLog}
	if err := s.migrate(o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) migrate(o openOptions) error {
	if s.driver == config.DriverPostgres {
		for _, ext := range []string{"vector", "uuid-ossp"} {
			if err := s.db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS "%s";`, ext)).Error; err != nil {
				s.log.Error("Failed to enable extension", "extension", ext, "error", err)
				return fmt.Errorf("failed to enable %s extension: %w", ext, err)
			}
		}
	}

	s.log.Info("Auto migrating corpus tables...")
	if err := s.db.AutoMigrate(&documentModel{}, &chunkModel{}, &metaModel{}); err != nil {
		s.log.Error("Auto migration failed for corpus tables", "error", err)
		return fmt.Errorf("failed to migrate corpus tables: %w", err)
	}

	if err := s.checkDimension(o.allowDimensionChange); err != nil {
		return err
	}
	if s.driver == config.DriverPostgres {
		return s.migrateVectorColumn(o.allowDimensionChange)
	}
	return nil
}

// storedDimension returns the recorded corpus dimension. Corpora created
// before the record existed fall back to the length of any stored
// embedding; 0 means the corpus has no vectors yet.
func (s *Store) storedDimension() (int, error) {
	var m metaModel
	err := s.db.Where("meta_key = ?", metaKeyDimension).Take(&m).Error
	if err == nil {
		dim, err := strconv.Atoi(m.Value)
		if err != nil {
			return 0, fmt.Errorf("invalid stored embedding dimension %q: %w", m.Value, err)
		}
		return dim, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to read corpus metadata: %w", err)
	}

	var sample []chunkModel
	if err := s.db.Where("embedding IS NOT NULL").Limit(1).Find(&sample).Error; err != nil {
		return 0, fmt.Errorf("failed to sample stored embeddings: %w", err)
	}
	if len(sample) == 0 {
		return 0, nil
	}
	return len(fromVector(sample[0].Embedding)), nil
}

func (s *Store) checkDimension(allowChange bool) error {
	stored, err := s.storedDimension()
	if err != nil {
		return err
	}
	if stored != 0 && stored != s.dimension {
		if allowChange {
			s.log.Warn("Corpus embedding dimension differs from config", "stored", stored, "configured", s.dimension)
			return nil
		}
		return fmt.Errorf("%w: corpus was built with dimension %d, configured %d (run `ekb reset` to clear the corpus)",
			domain.ErrDimensionMismatch, stored, s.dimension)
	}
	return s.recordDimension(s.db)
}

func (s *Store) recordDimension(tx *gorm.DB) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&metaModel{Key: metaKeyDimension, Value: strconv.Itoa(s.dimension)}).Error
	if err != nil {
		return fmt.Errorf("failed to record embedding dimension: %w", err)
	}
	return nil
}

const createEmbeddingIndex = `
	CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
	ON document_chunks USING hnsw (embedding vector_l2_ops)
`

// migrateVectorColumn fixes the embedding column to the deployment dimension
// and builds the HNSW index used by the <-> operator.
func (s *Store) migrateVectorColumn(allowChange bool) error {
	want := fmt.Sprintf("vector(%d)", s.dimension)

	var current string
	err := s.db.Raw(`
		SELECT format_type(atttypid, atttypmod)
		FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'
	`).Scan(&current).Error
	if err != nil {
		return fmt.Errorf("failed to inspect embedding column: %w", err)
	}

	switch current {
	case want:
	case "vector":
		if err := s.db.Exec(fmt.Sprintf(
			`ALTER TABLE document_chunks ALTER COLUMN embedding TYPE %s USING embedding::%s`, want, want,
		)).Error; err != nil {
			return fmt.Errorf("failed to set embedding dimension: %w", err)
		}
		s.log.Info("Embedding column dimension set", "type", want)
	default:
		if allowChange {
			// Clear retypes the column.
			return nil
		}
		return fmt.Errorf("%w: embedding column is %s but configured dimension needs %s",
			domain.ErrDimensionMismatch, current, want)
	}

	if err := s.db.Exec(createEmbeddingIndex).Error; err != nil {
		return fmt.Errorf("failed to create embedding index: %w", err)
	}
	return nil
}

// retypeVectorColumn resizes the (empty) embedding column and rebuilds its index.
func (s *Store) retypeVectorColumn(tx *gorm.DB) error {
	want := fmt.Sprintf("vector(%d)", s.dimension)
	stmts := []string{
		`DROP INDEX IF EXISTS idx_document_chunks_embedding`,
		fmt.Sprintf(`ALTER TABLE document_chunks ALTER COLUMN embedding TYPE %s USING NULL::%s`, want, want),
		createEmbeddingIndex,
	}
	for _, stmt := range stmts {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to retype embedding column: %w", err)
		}
	}
	return nil
}
