package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/podpah/channelstats/storage"
)

// Default pipeline tuning values. The per-call quota costs and the daily
// ceiling mirror the YouTube Data API v3 defaults.
const (
	DefaultDailyQuota  = 10000
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// Config contains common runtime configuration shared by the pipeline
// components (writers, readers, client).
type Config struct {
	// Logger log instance, if nil will use default nop logger
	Logger *zap.Logger
	// Debug whether to enable debug mode
	Debug bool
	// OverwriteExisting whether to overwrite existing snapshot artifacts, default false.
	// When false, writing to an already-persisted run path returns an error.
	OverwriteExisting bool
	// PageSizeBytes page size in bytes, when a serialized snapshot exceeds this size
	// it is split over several artifact parts. Default 0 means no pagination.
	PageSizeBytes int64
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Logger: zap.NewNop(),
		Debug:  false,
	}
}

// NewDebugConfig returns configuration with debug mode enabled
func NewDebugConfig() *Config {
	debugLogger, err := zap.NewDevelopment()
	if err != nil {
		debugLogger = zap.NewNop()
	}

	return &Config{
		Logger: debugLogger,
		Debug:  true,
	}
}

// WithLogger sets custom logger
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.Logger = logger
	return c
}

// WithProductionLogger sets production environment logger
func (c *Config) WithProductionLogger() *Config {
	logger, err := zap.NewProduction()
	if err != nil {
		c.Logger = zap.NewNop()
	} else {
		c.Logger = logger
	}
	return c
}

// WithDevelopmentLogger sets debug logger
func (c *Config) WithDevelopmentLogger() *Config {
	devLogger, err := zap.NewDevelopment()
	if err != nil {
		return c
	}
	c.Logger = devLogger
	c.Debug = true
	return c
}

// GetLogger gets logger instance
func (c *Config) GetLogger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// WithOverwriteExisting sets whether to overwrite existing snapshot artifacts
func (c *Config) WithOverwriteExisting(overwrite bool) *Config {
	c.OverwriteExisting = overwrite
	return c
}

// WithPageSize sets artifact page size (bytes)
func (c *Config) WithPageSize(sizeBytes int64) *Config {
	c.PageSizeBytes = sizeBytes
	return c
}

// RetryConfig bounds the API client's retry loop for transient failures.
type RetryConfig struct {
	// MaxAttempts total attempts per call, including the first one
	MaxAttempts int `yaml:"max-attempts,omitempty" toml:"max-attempts,omitempty" json:"max-attempts,omitempty"`
	// BackoffBase base delay before the second attempt; doubles per attempt
	BackoffBase time.Duration `yaml:"backoff-base,omitempty" toml:"backoff-base,omitempty" json:"backoff-base,omitempty"`
	// Jitter randomizes each delay in [0, delay) when true
	Jitter bool `yaml:"jitter,omitempty" toml:"jitter,omitempty" json:"jitter,omitempty"`
}

// SnapshotStoreConfig configures where snapshot artifacts are persisted.
type SnapshotStoreConfig struct {
	// Storage provider type: s3, oss, azure, localfs
	Type storage.ProviderType `yaml:"type,omitempty" toml:"type,omitempty" json:"type,omitempty"`
	// Storage region
	Region string `yaml:"region,omitempty" toml:"region,omitempty" json:"region,omitempty"`
	// Storage bucket/container name
	Bucket string `yaml:"bucket,omitempty" toml:"bucket,omitempty" json:"bucket,omitempty"`
	// Path prefix for all stored artifacts
	Prefix string `yaml:"prefix,omitempty" toml:"prefix,omitempty" json:"prefix,omitempty"`
	// Custom endpoint for S3-compatible services
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Cloud-specific configurations
	AWS     *AWSStoreConfig     `yaml:"aws,omitempty" toml:"aws,omitempty" json:"aws,omitempty"`
	OSS     *OSSStoreConfig     `yaml:"oss,omitempty" toml:"oss,omitempty" json:"oss,omitempty"`
	Azure   *AzureStoreConfig   `yaml:"azure,omitempty" toml:"azure,omitempty" json:"azure,omitempty"`
	LocalFS *LocalFSStoreConfig `yaml:"localfs,omitempty" toml:"localfs,omitempty" json:"localfs,omitempty"`
}

// AWSStoreConfig AWS S3 specific configuration for the snapshot store
type AWSStoreConfig struct {
	AssumeRoleARN    string `yaml:"assume-role-arn,omitempty" toml:"assume-role-arn,omitempty" json:"assume-role-arn,omitempty"`
	S3ForcePathStyle bool   `yaml:"s3-force-path-style,omitempty" toml:"s3-force-path-style,omitempty" json:"s3-force-path-style,omitempty"`
	AccessKey        string `yaml:"access-key,omitempty" toml:"access-key,omitempty" json:"access-key,omitempty"`
	SecretAccessKey  string `yaml:"secret-access-key,omitempty" toml:"secret-access-key,omitempty" json:"secret-access-key,omitempty"`
	SessionToken     string `yaml:"session-token,omitempty" toml:"session-token,omitempty" json:"session-token,omitempty"`
}

// OSSStoreConfig Alibaba Cloud OSS specific configuration for the snapshot store
type OSSStoreConfig struct {
	AccessKey       string `yaml:"access-key,omitempty" toml:"access-key,omitempty" json:"access-key,omitempty"`
	SecretAccessKey string `yaml:"secret-access-key,omitempty" toml:"secret-access-key,omitempty" json:"secret-access-key,omitempty"`
	SessionToken    string `yaml:"session-token,omitempty" toml:"session-token,omitempty" json:"session-token,omitempty"`
}

// AzureStoreConfig Azure Blob Storage specific configuration for the snapshot store
type AzureStoreConfig struct {
	AccountName string `yaml:"account-name,omitempty" toml:"account-name,omitempty" json:"account-name,omitempty"`
	AccountKey  string `yaml:"account-key,omitempty" toml:"account-key,omitempty" json:"account-key,omitempty"`
	SASToken    string `yaml:"sas-token,omitempty" toml:"sas-token,omitempty" json:"sas-token,omitempty"`
}

// LocalFSStoreConfig local filesystem specific configuration for the snapshot store
type LocalFSStoreConfig struct {
	BasePath    string `yaml:"base-path,omitempty" toml:"base-path,omitempty" json:"base-path,omitempty"`
	CreateDirs  bool   `yaml:"create-dirs,omitempty" toml:"create-dirs,omitempty" json:"create-dirs,omitempty"`
	Permissions string `yaml:"permissions,omitempty" toml:"permissions,omitempty" json:"permissions,omitempty"`
}

// PipelineConfig is the declarative configuration of one extraction
// pipeline: credentials, target channel, quota budget, retry policy, and
// the two stores (snapshot artifacts, history database).
type PipelineConfig struct {
	// APIKey is the static API credential
	APIKey string `yaml:"api-key,omitempty" toml:"api-key,omitempty" json:"api-key,omitempty"`
	// APIBaseURL overrides the API endpoint, mainly for proxies and tests
	APIBaseURL string `yaml:"api-base-url,omitempty" toml:"api-base-url,omitempty" json:"api-base-url,omitempty"`
	// ChannelID is the target channel identifier
	ChannelID string `yaml:"channel-id,omitempty" toml:"channel-id,omitempty" json:"channel-id,omitempty"`
	// DailyQuota is the call-cost ceiling per budget window
	DailyQuota int64 `yaml:"daily-quota,omitempty" toml:"daily-quota,omitempty" json:"daily-quota,omitempty"`
	// CallCosts maps API operation name to its quota cost; missing entries cost 1
	CallCosts map[string]int64 `yaml:"call-costs,omitempty" toml:"call-costs,omitempty" json:"call-costs,omitempty"`
	// BatchSize is the max IDs per statistics call (API limit 50)
	BatchSize int `yaml:"batch-size,omitempty" toml:"batch-size,omitempty" json:"batch-size,omitempty"`
	// QuotaResetTZ names the IANA time zone whose midnight rolls the budget window, default UTC
	QuotaResetTZ string `yaml:"quota-reset-tz,omitempty" toml:"quota-reset-tz,omitempty" json:"quota-reset-tz,omitempty"`

	Retry RetryConfig `yaml:"retry,omitempty" toml:"retry,omitempty" json:"retry,omitempty"`

	// SnapshotStore is where run artifacts are persisted
	SnapshotStore SnapshotStoreConfig `yaml:"snapshot-store,omitempty" toml:"snapshot-store,omitempty" json:"snapshot-store,omitempty"`
	// HistoryDBPath is the SQLite file holding the cumulative history
	HistoryDBPath string `yaml:"history-db-path,omitempty" toml:"history-db-path,omitempty" json:"history-db-path,omitempty"`
}

// NewPipelineConfig creates a PipelineConfig with default tuning values
func NewPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		DailyQuota:   DefaultDailyQuota,
		BatchSize:    DefaultBatchSize,
		QuotaResetTZ: "UTC",
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BackoffBase: DefaultBackoffBase,
			Jitter:      true,
		},
	}
}

// Validate checks the fields no pipeline can run without
func (pc *PipelineConfig) Validate() error {
	if pc.APIKey == "" {
		return fmt.Errorf("api-key is required")
	}
	if pc.ChannelID == "" {
		return fmt.Errorf("channel-id is required")
	}
	if pc.DailyQuota <= 0 {
		return fmt.Errorf("daily-quota must be positive")
	}
	if pc.BatchSize <= 0 || pc.BatchSize > 50 {
		return fmt.Errorf("batch-size must be in (0, 50]")
	}
	if pc.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max-attempts must be positive")
	}
	if pc.HistoryDBPath == "" {
		return fmt.Errorf("history-db-path is required")
	}
	return nil
}

// ResetLocation resolves QuotaResetTZ, falling back to UTC
func (pc *PipelineConfig) ResetLocation() *time.Location {
	if pc.QuotaResetTZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(pc.QuotaResetTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WithChannel sets the API credential and target channel
func (pc *PipelineConfig) WithChannel(apiKey, channelID string) *PipelineConfig {
	pc.APIKey = apiKey
	pc.ChannelID = channelID
	return pc
}

// WithDailyQuota sets the call-cost ceiling per budget window
func (pc *PipelineConfig) WithDailyQuota(quota int64) *PipelineConfig {
	pc.DailyQuota = quota
	return pc
}

// WithHistoryDB sets the SQLite history database path
func (pc *PipelineConfig) WithHistoryDB(path string) *PipelineConfig {
	pc.HistoryDBPath = path
	return pc
}

// WithLocalSnapshotStore configures a local filesystem snapshot store
func (pc *PipelineConfig) WithLocalSnapshotStore(basePath string) *PipelineConfig {
	pc.SnapshotStore.Type = storage.ProviderTypeLocalFS
	if pc.SnapshotStore.LocalFS == nil {
		pc.SnapshotStore.LocalFS = &LocalFSStoreConfig{}
	}
	pc.SnapshotStore.LocalFS.BasePath = basePath
	pc.SnapshotStore.LocalFS.CreateDirs = true
	return pc
}

// WithS3SnapshotStore configures an S3 snapshot store
func (pc *PipelineConfig) WithS3SnapshotStore(region, bucket string) *PipelineConfig {
	pc.SnapshotStore.Type = storage.ProviderTypeS3
	pc.SnapshotStore.Region = region
	pc.SnapshotStore.Bucket = bucket
	return pc
}

// ToProviderConfig converts the snapshot store section to a storage.ProviderConfig
func (sc *SnapshotStoreConfig) ToProviderConfig() *storage.ProviderConfig {
	config := &storage.ProviderConfig{
		Type:     sc.Type,
		Region:   sc.Region,
		Bucket:   sc.Bucket,
		Prefix:   sc.Prefix,
		Endpoint: sc.Endpoint,
	}

	switch sc.Type {
	case storage.ProviderTypeS3:
		if sc.AWS != nil {
			config.AWS = &storage.AWSConfig{
				AssumeRoleARN:    sc.AWS.AssumeRoleARN,
				S3ForcePathStyle: sc.AWS.S3ForcePathStyle,
				AccessKey:        sc.AWS.AccessKey,
				SecretAccessKey:  sc.AWS.SecretAccessKey,
				SessionToken:     sc.AWS.SessionToken,
			}
		}
	case storage.ProviderTypeOSS:
		if sc.OSS != nil {
			config.OSS = &storage.OSSConfig{
				AccessKey:       sc.OSS.AccessKey,
				SecretAccessKey: sc.OSS.SecretAccessKey,
				SessionToken:    sc.OSS.SessionToken,
			}
		}
	case storage.ProviderTypeAzure:
		if sc.Azure != nil {
			config.Azure = &storage.AzureConfig{
				AccountName: sc.Azure.AccountName,
				AccountKey:  sc.Azure.AccountKey,
				SASToken:    sc.Azure.SASToken,
			}
		}
	case storage.ProviderTypeLocalFS:
		if sc.LocalFS != nil {
			config.LocalFS = &storage.LocalFSConfig{
				BasePath:    sc.LocalFS.BasePath,
				CreateDirs:  sc.LocalFS.CreateDirs,
				Permissions: sc.LocalFS.Permissions,
			}
		}
	}

	return config
}

// LoadPipelineConfig reads a PipelineConfig from a .toml, .yaml or .yml
// file, applying defaults for fields the file leaves unset.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	pc := NewPipelineConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, pc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, pc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}

	return pc, nil
}

// NewStoreFromURI creates a SnapshotStoreConfig from a URI string.
// URI format: [scheme]://[bucket]/[prefix]?[parameters]
// Examples:
//   - s3://my-bucket/snapshots?region-id=us-east-1&endpoint=https://s3.example.com
//   - oss://my-bucket/snapshots?region-id=oss-ap-southeast-1&access-key=AKSKEXAMPLE
//   - azure://my-container/snapshots?account-name=myaccount
//   - localfs:///data/snapshots?create-dirs=true&permissions=0755
func NewStoreFromURI(uriStr string) (*SnapshotStoreConfig, error) {
	parsedURL, err := url.Parse(uriStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI: %w", err)
	}

	config := &SnapshotStoreConfig{}

	switch strings.ToLower(parsedURL.Scheme) {
	case "s3":
		config.Type = storage.ProviderTypeS3
	case "oss":
		config.Type = storage.ProviderTypeOSS
	case "azure":
		config.Type = storage.ProviderTypeAzure
	case "localfs", "file":
		config.Type = storage.ProviderTypeLocalFS
	default:
		return nil, fmt.Errorf("unsupported URI scheme: %s", parsedURL.Scheme)
	}

	if config.Type == storage.ProviderTypeLocalFS {
		var basePath string
		if parsedURL.Host != "" {
			// "localfs://host/path" combines host and path
			hostPath := "/" + parsedURL.Host
			if parsedURL.Path != "" && parsedURL.Path != "/" {
				basePath = hostPath + "/" + strings.TrimPrefix(parsedURL.Path, "/")
			} else {
				basePath = hostPath
			}
		} else {
			basePath = parsedURL.Path
		}
		config.LocalFS = &LocalFSStoreConfig{
			BasePath:   basePath,
			CreateDirs: true, // default
		}
	} else {
		if parsedURL.Host != "" {
			config.Bucket = parsedURL.Host
		}
		if parsedURL.Path != "" {
			config.Prefix = strings.TrimPrefix(parsedURL.Path, "/")
		}
	}

	queryParams := parsedURL.Query()

	regionID := queryParams.Get("region-id")
	if regionID == "" {
		regionID = queryParams.Get("region")
	}
	if regionID != "" {
		config.Region = regionID
	}
	if prefix := queryParams.Get("prefix"); prefix != "" {
		config.Prefix = prefix
	}
	if endpoint := queryParams.Get("endpoint"); endpoint != "" {
		config.Endpoint = endpoint
	}

	switch config.Type {
	case storage.ProviderTypeS3:
		awsConfig := &AWSStoreConfig{}
		hasAWSConfig := false

		if accessKey := queryParams.Get("access-key"); accessKey != "" {
			awsConfig.AccessKey = accessKey
			hasAWSConfig = true
		}
		if secretKey := queryParams.Get("secret-access-key"); secretKey != "" {
			awsConfig.SecretAccessKey = secretKey
			hasAWSConfig = true
		}
		if sessionToken := queryParams.Get("session-token"); sessionToken != "" {
			awsConfig.SessionToken = sessionToken
			hasAWSConfig = true
		}
		roleARN := queryParams.Get("assume-role-arn")
		if roleARN == "" {
			roleARN = queryParams.Get("role-arn")
		}
		if roleARN != "" {
			awsConfig.AssumeRoleARN = roleARN
			hasAWSConfig = true
		}
		forcePathStyle := queryParams.Get("s3-force-path-style")
		if forcePathStyle == "" {
			forcePathStyle = queryParams.Get("force-path-style")
		}
		if forcePathStyle == "true" {
			awsConfig.S3ForcePathStyle = true
			hasAWSConfig = true
		}

		if hasAWSConfig {
			config.AWS = awsConfig
		}

	case storage.ProviderTypeOSS:
		ossConfig := &OSSStoreConfig{}
		hasOSSConfig := false

		if accessKey := queryParams.Get("access-key"); accessKey != "" {
			ossConfig.AccessKey = accessKey
			hasOSSConfig = true
		}
		if secretKey := queryParams.Get("secret-access-key"); secretKey != "" {
			ossConfig.SecretAccessKey = secretKey
			hasOSSConfig = true
		}
		if sessionToken := queryParams.Get("session-token"); sessionToken != "" {
			ossConfig.SessionToken = sessionToken
			hasOSSConfig = true
		}

		if hasOSSConfig {
			config.OSS = ossConfig
		}

	case storage.ProviderTypeAzure:
		azureConfig := &AzureStoreConfig{}
		hasAzureConfig := false

		if accountName := queryParams.Get("account-name"); accountName != "" {
			azureConfig.AccountName = accountName
			hasAzureConfig = true
		}
		if accountKey := queryParams.Get("account-key"); accountKey != "" {
			azureConfig.AccountKey = accountKey
			hasAzureConfig = true
		}
		if sasToken := queryParams.Get("sas-token"); sasToken != "" {
			azureConfig.SASToken = sasToken
			hasAzureConfig = true
		}

		if hasAzureConfig {
			config.Azure = azureConfig
		}

	case storage.ProviderTypeLocalFS:
		if config.LocalFS == nil {
			config.LocalFS = &LocalFSStoreConfig{CreateDirs: true}
		}

		if createDirs := queryParams.Get("create-dirs"); createDirs == "false" {
			config.LocalFS.CreateDirs = false
		}
		if permissions := queryParams.Get("permissions"); permissions != "" {
			config.LocalFS.Permissions = permissions
		}
	}

	return config, nil
}
