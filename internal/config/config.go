// Package config loads staffcore settings from an optional YAML file and
// STAFFCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"staffcore/internal/blob"
	"staffcore/internal/core"
	"staffcore/internal/infra/persistence/blobstore"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given and the file exists.
const DefaultFile = "staffcore.yml"

// Config is the top-level staffcore.yml document.
type Config struct {
	// Instance namespaces the change feed channel.
	Instance  string          `yaml:"instance"`
	Conflicts ConflictsConfig `yaml:"conflicts"`
	Storage   StorageConfig   `yaml:"storage"`
	Blob      BlobConfig      `yaml:"blob"`
	Snapshots SnapshotConfig  `yaml:"snapshots"`
	Redis     RedisConfig     `yaml:"redis"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

// ConflictsConfig selects the overlap policy.
type ConflictsConfig struct {
	Policy string `yaml:"policy"` // advisory (default) or strict
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres or blob
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// BlobConfig configures the object store used by the blob storage driver.
type BlobConfig struct {
	Driver string   `yaml:"driver"` // fs, s3 or memory
	Root   string   `yaml:"root,omitempty"`
	S3     S3Config `yaml:"s3,omitempty"`
}

// S3Config addresses an S3 or MinIO bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
}

// SnapshotConfig controls snapshot objects written by the blob driver.
type SnapshotConfig struct {
	Prefix string `yaml:"prefix,omitempty"`
	Codec  string `yaml:"codec,omitempty"` // json or cbor
	Retain int    `yaml:"retain,omitempty"`
}

// RedisConfig enables the change feed when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
	File   string `yaml:"file,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Instance:  "default",
		Conflicts: ConflictsConfig{Policy: string(core.ConflictPolicyAdvisory)},
		Storage:   StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "staffcore.db"},
		Blob:      BlobConfig{Driver: string(blob.DriverFilesystem), Root: "./snapshots"},
		Snapshots: SnapshotConfig{Prefix: blobstore.DefaultPrefix, Codec: string(blobstore.CodecJSON), Retain: blobstore.DefaultRetain},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (or DefaultFile when path is empty and it exists), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"STAFFCORE_INSTANCE":                  &c.Instance,
		"STAFFCORE_CONFLICT_POLICY":           &c.Conflicts.Policy,
		"STAFFCORE_STORAGE_DRIVER":            &c.Storage.Driver,
		"STAFFCORE_SQLITE_PATH":               &c.Storage.SQLitePath,
		"STAFFCORE_POSTGRES_DSN":              &c.Storage.PostgresDSN,
		"STAFFCORE_BLOB_DRIVER":               &c.Blob.Driver,
		"STAFFCORE_BLOB_FS_ROOT":              &c.Blob.Root,
		"STAFFCORE_BLOB_S3_BUCKET":            &c.Blob.S3.Bucket,
		"STAFFCORE_BLOB_S3_REGION":            &c.Blob.S3.Region,
		"STAFFCORE_BLOB_S3_ENDPOINT":          &c.Blob.S3.Endpoint,
		"STAFFCORE_BLOB_S3_ACCESS_KEY_ID":     &c.Blob.S3.AccessKeyID,
		"STAFFCORE_BLOB_S3_SECRET_ACCESS_KEY": &c.Blob.S3.SecretAccessKey,
		"STAFFCORE_SNAPSHOT_PREFIX":           &c.Snapshots.Prefix,
		"STAFFCORE_SNAPSHOT_CODEC":            &c.Snapshots.Codec,
		"STAFFCORE_REDIS_ADDR":                &c.Redis.Addr,
		"STAFFCORE_REDIS_PASSWORD":            &c.Redis.Password,
		"STAFFCORE_HTTP_ADDR":                 &c.HTTP.Addr,
		"STAFFCORE_LOG_LEVEL":                 &c.Log.Level,
		"STAFFCORE_LOG_FORMAT":                &c.Log.Format,
		"STAFFCORE_LOG_FILE":                  &c.Log.File,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"STAFFCORE_SNAPSHOT_RETAIN": &c.Snapshots.Retain,
		"STAFFCORE_REDIS_DB":        &c.Redis.DB,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
	}
	if v, ok := lookup("STAFFCORE_BLOB_S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("STAFFCORE_BLOB_S3_PATH_STYLE: invalid boolean %q", v)
		}
		c.Blob.S3.PathStyle = b
	}
	return nil
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Instance) == "" {
		return fmt.Errorf("instance is required")
	}
	if _, err := core.ParseConflictPolicy(c.Conflicts.Policy); err != nil {
		return fmt.Errorf("conflicts.policy: %w", err)
	}

	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	case core.StorageBlob:
		if err := c.validateBlob(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid storage.driver: %s (must be 'memory', 'sqlite', 'postgres', or 'blob')", c.Storage.Driver)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log.format: %s (must be 'json' or 'console')", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	return nil
}

func (c *Config) validateBlob() error {
	switch blob.Driver(c.Blob.Driver) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("invalid blob.driver: %s (must be 'fs', 's3', or 'memory')", c.Blob.Driver)
	}
	switch blobstore.Codec(c.Snapshots.Codec) {
	case "", blobstore.CodecJSON, blobstore.CodecCBOR:
	default:
		return fmt.Errorf("invalid snapshots.codec: %s (must be 'json' or 'cbor')", c.Snapshots.Codec)
	}
	if c.Snapshots.Retain < 0 {
		return fmt.Errorf("snapshots.retain must be >= 0, got %d", c.Snapshots.Retain)
	}
	return nil
}

// ConflictPolicy returns the parsed overlap policy.
func (c *Config) ConflictPolicy() core.ConflictPolicy {
	policy, err := core.ParseConflictPolicy(c.Conflicts.Policy)
	if err != nil {
		return core.ConflictPolicyAdvisory
	}
	return policy
}

// StorageConfig maps the storage, blob and snapshot sections onto the core
// store factory.
func (c *Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Blob: blob.Options{
			Driver: blob.Driver(c.Blob.Driver),
			FSRoot: c.Blob.Root,
			S3: blob.S3Config{
				Bucket:          c.Blob.S3.Bucket,
				Region:          c.Blob.S3.Region,
				Endpoint:        c.Blob.S3.Endpoint,
				AccessKeyID:     c.Blob.S3.AccessKeyID,
				SecretAccessKey: c.Blob.S3.SecretAccessKey,
				PathStyle:       c.Blob.S3.PathStyle,
			},
		},
		Snapshots: blobstore.Config{
			Prefix: c.Snapshots.Prefix,
			Codec:  blobstore.Codec(c.Snapshots.Codec),
			Retain: c.Snapshots.Retain,
		},
	}
}

// RedisOptions returns client options, or nil when the change feed is
// disabled.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB}
}
