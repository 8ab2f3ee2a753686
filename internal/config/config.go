// Package config provides unified configuration for all storelabs workloads.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/eventgen"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "STORELABS_"

// Config holds the unified configuration for all workloads.
type Config struct {
	// DataDir is the base directory for generated files and results
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Generator  GeneratorConfig  `json:"generator" yaml:"generator"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Postgres   PostgresConfig   `json:"postgres" yaml:"postgres"`
	MySQL      MySQLConfig      `json:"mysql" yaml:"mysql"`
	SQLite     SQLiteConfig     `json:"sqlite" yaml:"sqlite"`
	Cassandra  CassandraConfig  `json:"cassandra" yaml:"cassandra"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Mongo      MongoConfig      `json:"mongo" yaml:"mongo"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	University UniversityConfig `json:"university" yaml:"university"`
}

// GeneratorConfig holds clickstream generator settings.
type GeneratorConfig struct {
	eventgen.Config `yaml:",inline"`

	// Seed seeds the random source; unset picks a time-based seed
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Output is the CSV path; relative paths resolve under DataDir
	Output string `json:"output" yaml:"output"`

	// Compress snappy-frames exported datasets
	Compress bool `json:"compress" yaml:"compress"`
}

// EffectiveSeed returns the configured seed, or now in nanoseconds when no
// seed is set. Zero is a valid explicit seed.
func (g GeneratorConfig) EffectiveSeed(now time.Time) int64 {
	if g.Seed != nil {
		return *g.Seed
	}
	return now.UnixNano()
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is a logrus level name: debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// DSN returns a lib/pq URL connection string.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// DSN returns a go-sql-driver/mysql data source name.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC",
		c.User, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
}

// SQLiteConfig holds the SQLite event sink path.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// CassandraConfig holds Cassandra cluster settings.
type CassandraConfig struct {
	Hosts             []string      `json:"hosts" yaml:"hosts"`
	Keyspace          string        `json:"keyspace" yaml:"keyspace"`
	Username          string        `json:"username" yaml:"username"`
	Password          string        `json:"password" yaml:"password"`
	ReplicationFactor int           `json:"replication_factor" yaml:"replication_factor"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Database string `json:"database" yaml:"database"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3, minio
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// Minio configuration (for minio type)
	Minio MinioConfig `json:"minio" yaml:"minio"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Static credentials; empty uses the default AWS credential chain
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// MinioConfig holds MinIO storage configuration.
type MinioConfig struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Secure          bool   `json:"secure" yaml:"secure"`
	Region          string `json:"region" yaml:"region"`
}

// UniversityConfig holds the university benchmark settings.
type UniversityConfig struct {
	// Scale is the number of students to seed
	Scale int `json:"scale" yaml:"scale"`

	// Runs is the number of timed executions per query
	Runs int `json:"runs" yaml:"runs"`

	// ResultsFile is the CSV the benchmark appends to
	ResultsFile string `json:"results_file" yaml:"results_file"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/storelabs",
		Generator: GeneratorConfig{
			Config: eventgen.DefaultConfig(),
			Output: "events.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "university_db",
			SSLMode:  "disable",
		},
		MySQL: MySQLConfig{
			Host:     "localhost",
			Port:     3307,
			User:     "root",
			Database: "quickkart_db",
		},
		Cassandra: CassandraConfig{
			Hosts:             []string{"127.0.0.1"},
			Keyspace:          "quickkart_keyspace",
			ReplicationFactor: 1,
			Timeout:           10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "bookbazaar_db",
		},
		Storage: StorageConfig{
			Type: "local",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		University: UniversityConfig{
			Scale:       1000,
			Runs:        3,
			ResultsFile: "query_results.csv",
		},
	}
}

// Resolve resolves relative paths against DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/storelabs"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(c.DataDir, "events.db")
	}
	if c.Generator.Output != "" && !filepath.IsAbs(c.Generator.Output) {
		c.Generator.Output = filepath.Join(c.DataDir, c.Generator.Output)
	}
	if c.University.ResultsFile != "" && !filepath.IsAbs(c.University.ResultsFile) {
		c.University.ResultsFile = filepath.Join(c.DataDir, c.University.ResultsFile)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.NewInvalidConfiguration("data_dir is required")
	}

	if err := c.Generator.Validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return errors.NewInvalidConfiguration("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.NewInvalidConfiguration("s3.bucket is required when storage type is s3")
		}
	case "minio":
		if c.Storage.Minio.Bucket == "" || c.Storage.Minio.Endpoint == "" {
			return errors.NewInvalidConfiguration("minio.bucket and minio.endpoint are required when storage type is minio")
		}
	default:
		return errors.NewInvalidConfiguration("invalid storage type: %s (must be local, s3, or minio)", c.Storage.Type)
	}

	if len(c.Cassandra.Hosts) == 0 {
		return errors.NewInvalidConfiguration("cassandra.hosts must not be empty")
	}
	if c.Cassandra.ReplicationFactor <= 0 {
		return errors.NewInvalidConfiguration("cassandra.replication_factor must be positive, got %d", c.Cassandra.ReplicationFactor)
	}

	if c.University.Scale <= 0 {
		return errors.NewInvalidConfiguration("university.scale must be positive, got %d", c.University.Scale)
	}
	if c.University.Runs <= 0 {
		return errors.NewInvalidConfiguration("university.runs must be positive, got %d", c.University.Runs)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STORELABS_ prefix.
func LoadFromEnv(cfg *Config) {
	setString(&cfg.DataDir, "DATA_DIR")

	// Generator configuration
	setInt(&cfg.Generator.TotalEvents, "GENERATOR_TOTAL_EVENTS")
	setInt(&cfg.Generator.Users, "GENERATOR_USERS")
	setInt(&cfg.Generator.Products, "GENERATOR_PRODUCTS")
	if v := os.Getenv(EnvPrefix + "GENERATOR_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Generator.Seed = &n
		}
	}
	setString(&cfg.Generator.Output, "GENERATOR_OUTPUT")
	setBool(&cfg.Generator.Compress, "GENERATOR_COMPRESS")
	setBool(&cfg.Generator.CloseExhaustedSessions, "GENERATOR_CLOSE_EXHAUSTED_SESSIONS")

	// Logging configuration
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	// Postgres configuration
	setString(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setString(&cfg.Postgres.User, "POSTGRES_USER")
	setString(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Postgres.Database, "POSTGRES_DATABASE")

	// MySQL configuration
	setString(&cfg.MySQL.Host, "MYSQL_HOST")
	setInt(&cfg.MySQL.Port, "MYSQL_PORT")
	setString(&cfg.MySQL.User, "MYSQL_USER")
	setString(&cfg.MySQL.Password, "MYSQL_PASSWORD")
	setString(&cfg.MySQL.Database, "MYSQL_DATABASE")

	setString(&cfg.SQLite.Path, "SQLITE_PATH")

	// Cassandra configuration
	if v := os.Getenv(EnvPrefix + "CASSANDRA_HOSTS"); v != "" {
		cfg.Cassandra.Hosts = strings.Split(v, ",")
	}
	setString(&cfg.Cassandra.Keyspace, "CASSANDRA_KEYSPACE")
	setString(&cfg.Cassandra.Username, "CASSANDRA_USERNAME")
	setString(&cfg.Cassandra.Password, "CASSANDRA_PASSWORD")

	// Redis configuration
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Username, "REDIS_USERNAME")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	// Mongo configuration
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")

	// Storage configuration
	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.Path, "STORAGE_PATH")
	setString(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.S3.Region, "S3_REGION")
	setString(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	setBool(&cfg.Storage.S3.UsePathStyle, "S3_USE_PATH_STYLE")
	setString(&cfg.Storage.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.Minio.Bucket, "MINIO_BUCKET")
	setString(&cfg.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.Minio.AccessKeyID, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.Minio.SecretAccessKey, "MINIO_SECRET_KEY")
	setBool(&cfg.Storage.Minio.Secure, "MINIO_SECURE")

	// University configuration
	setInt(&cfg.University.Scale, "UNIVERSITY_SCALE")
	setInt(&cfg.University.Runs, "UNIVERSITY_RUNS")
	setString(&cfg.University.ResultsFile, "UNIVERSITY_RESULTS_FILE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		fmt.Sscanf(v, "%d", dst)
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
		filepath.Dir(c.SQLite.Path),
		filepath.Dir(c.Generator.Output),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
