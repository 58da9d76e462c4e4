package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"ekb/config"
)

// CurrentSchemaVersion is the current on-disk layout version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyEmbeddingHash = []byte("embedding_hash")
)

// ErrEmbeddingChanged means the corpus was built with a different embedding
// model or dimension; stored vectors are not comparable with new queries.
var ErrEmbeddingChanged = errors.New("embedding configuration changed since corpus was built")

// SchemaInfo stores schema version and embedding fingerprint.
type SchemaInfo struct {
	Version       int    `json:"version"`
	EmbeddingHash string `json:"embedding_hash"`
}

func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("failed to decode schema version: %w", err)
			}
		}
		info.EmbeddingHash = string(b.Get(keyEmbeddingHash))
		return nil
	})
	return &info, err
}

func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyEmbeddingHash, []byte(info.EmbeddingHash))
	})
}

// EmbeddingHash fingerprints the settings that determine vector space.
func EmbeddingHash(cfg config.EmbeddingConfig) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	}
	if cfg.Provider == "hash" {
		relevant.Model = ""
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration compares stored schema info against the running binary and config.
func (s *BoltStore) CheckMigration(cfg config.EmbeddingConfig) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	// Embedding provider "none" never writes vectors, so it cannot invalidate a corpus.
	if cfg.Provider != "none" && cfg.Provider != "" &&
		info.EmbeddingHash != "" && info.EmbeddingHash != EmbeddingHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = ErrEmbeddingChanged.Error()
	}

	return result, nil
}

// Migrate brings the schema to the current version and records the embedding
// fingerprint. It refuses to proceed when a rebuild is needed.
func (s *BoltStore) Migrate(cfg config.EmbeddingConfig) error {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return err
	}
	if result.NeedsRebuild {
		return fmt.Errorf("%w: %s (run `ekb reset` to clear the corpus)", ErrEmbeddingChanged, result.Reason)
	}

	for v := result.OldVersion; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}
	info.Version = CurrentSchemaVersion
	if cfg.Provider != "none" && cfg.Provider != "" {
		info.EmbeddingHash = EmbeddingHash(cfg)
	}
	return s.SetSchemaInfo(info)
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		// Buckets are created on open.
		return nil
	default:
		return nil
	}
}

// Clear removes every document and chunk and forgets the embedding
// fingerprint. The schema version is kept.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketSources, bucketChunks} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Delete(keyEmbeddingHash)
	})
}
