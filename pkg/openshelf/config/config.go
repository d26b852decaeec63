// Package config loads server configuration from the environment and builds
// the service with the configured repository, blob store, and URL signer.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openshelf/openshelf/pkg/openshelf"
	"github.com/openshelf/openshelf/pkg/openshelf/access"
	dynamorepo "github.com/openshelf/openshelf/pkg/openshelf/repo/dynamo"
	memoryrepo "github.com/openshelf/openshelf/pkg/openshelf/repo/memory"
	postgresrepo "github.com/openshelf/openshelf/pkg/openshelf/repo/postgres"
	"github.com/openshelf/openshelf/pkg/openshelf/sniff"
	fsstorage "github.com/openshelf/openshelf/pkg/openshelf/storage/fs"
	memorystorage "github.com/openshelf/openshelf/pkg/openshelf/storage/memory"
	s3storage "github.com/openshelf/openshelf/pkg/openshelf/storage/s3"
)

// ServerConfig is the full server configuration, populated from environment
// variables via cleanenv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	Auth    AuthConfig
	Repo    RepoConfig
	Storage StorageConfig
	S3      S3Config
	CDN     CDNConfig
	Limits  LimitsConfig
}

// AuthConfig configures JWT verification and the moderator gate.
type AuthConfig struct {
	JWTSecret      string `env:"JWT_SECRET"`
	ModeratorGroup string `env:"MODERATOR_GROUP" env-default:"moderators"`
}

// RepoConfig selects the metadata repository backend.
type RepoConfig struct {
	Type        string `env:"REPOSITORY_TYPE" env-default:"memory"` // memory, dynamo, postgres
	DatabaseURL string `env:"DATABASE_URL"`
	DynamoTable string `env:"DYNAMO_TABLE" env-default:"openshelf-books"`
}

// StorageConfig selects the blob store backend.
type StorageConfig struct {
	Type      string `env:"STORAGE_TYPE" env-default:"s3"` // s3, fs, memory
	FSBaseDir string `env:"FS_BASE_DIR" env-default:"./data/storage"`
	FSPrefix  string `env:"FS_URL_PREFIX"`
}

// S3Config configures the S3 blob store.
type S3Config struct {
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	Bucket          string `env:"S3_BUCKET"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"S3_ENDPOINT"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
}

// CDNConfig configures signed read URLs. All three fields are required for
// the signer; with none set, read URLs are disabled.
type CDNConfig struct {
	Domain        string `env:"CDN_DOMAIN"`
	KeyPairID     string `env:"CDN_KEY_PAIR_ID"`
	PrivateKeyPEM string `env:"CDN_PRIVATE_KEY"`
}

// LimitsConfig holds upload limits and lifecycle TTLs.
type LimitsConfig struct {
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" env-default:"52428800"`
	AllowedExtensions []string      `env:"ALLOWED_EXTENSIONS" env-default:".pdf,.epub"`
	UploadURLTTL      time.Duration `env:"UPLOAD_URL_TTL" env-default:"15m"`
	DraftTTL          time.Duration `env:"DRAFT_TTL" env-default:"72h"`
	ReadURLTTL        time.Duration `env:"READ_URL_TTL" env-default:"1h"`
}

// Load reads configuration from the environment and validates it.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *ServerConfig) Validate() error {
	switch c.Repo.Type {
	case "memory":
	case "dynamo":
		if c.Repo.DynamoTable == "" {
			return errors.New("DYNAMO_TABLE is required when using dynamo")
		}
	case "postgres":
		if c.Repo.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported repository type: %s", c.Repo.Type)
	}

	if c.Environment == "production" {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required in production")
		}
	}

	partial := (c.CDN.Domain != "") != (c.CDN.KeyPairID != "") ||
		(c.CDN.Domain != "") != (c.CDN.PrivateKeyPEM != "")
	if partial {
		return errors.New("CDN_DOMAIN, CDN_KEY_PAIR_ID and CDN_PRIVATE_KEY must be set together")
	}

	return nil
}

// BuildService assembles an openshelf.Service from the configuration.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (openshelf.Service, error) {
	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.buildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	options := []openshelf.Option{
		openshelf.WithRepository(repo),
		openshelf.WithBlobStore(store),
		openshelf.WithSniffer(sniff.NewDetector()),
		openshelf.WithLimits(c.limits()),
		openshelf.WithLogger(logger),
	}

	if c.CDN.Domain != "" {
		signer, err := access.New(access.Config{
			Domain:        c.CDN.Domain,
			KeyPairID:     c.CDN.KeyPairID,
			PrivateKeyPEM: c.CDN.PrivateKeyPEM,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build URL signer: %w", err)
		}
		options = append(options, openshelf.WithAccessSigner(signer))
	}

	return openshelf.New(options...)
}

func (c *ServerConfig) buildRepository(ctx context.Context) (openshelf.Repository, error) {
	switch c.Repo.Type {
	case "memory":
		return memoryrepo.New(), nil
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return dynamorepo.New(dynamodb.NewFromConfig(awsCfg), c.Repo.DynamoTable), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.Repo.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return postgresrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", c.Repo.Type)
	}
}

func (c *ServerConfig) buildBlobStore() (openshelf.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.FSBaseDir,
			URLPrefix: c.Storage.FSPrefix,
		})
	case "s3":
		if c.S3.Bucket == "" {
			// Development fallback when no bucket is configured.
			return memorystorage.New(), nil
		}
		return s3storage.New(s3storage.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

func (c *ServerConfig) limits() openshelf.Limits {
	limits := openshelf.DefaultLimits()
	if c.Limits.MaxUploadBytes > 0 {
		limits.MaxUploadBytes = c.Limits.MaxUploadBytes
	}
	if len(c.Limits.AllowedExtensions) > 0 {
		limits.AllowedExtensions = c.Limits.AllowedExtensions
	}
	if c.Limits.UploadURLTTL > 0 {
		limits.UploadURLTTL = c.Limits.UploadURLTTL
	}
	if c.Limits.DraftTTL > 0 {
		limits.DraftTTL = c.Limits.DraftTTL
	}
	if c.Limits.ReadURLTTL > 0 {
		limits.ReadURLTTL = c.Limits.ReadURLTTL
	}
	return limits
}
