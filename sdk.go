package channelstats

import (
	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/pipeline"
	"github.com/podpah/channelstats/reader"
	snapshotreader "github.com/podpah/channelstats/reader/snapshot"
	"github.com/podpah/channelstats/storage"
	"github.com/podpah/channelstats/writer"
	snapshotwriter "github.com/podpah/channelstats/writer/snapshot"
)

// SDK version information
const (
	Version = "v0.1.0"
)

// Re-export main types and functions for user convenience
type (
	// Config common runtime configuration
	Config = config.Config
	// PipelineConfig declarative pipeline configuration
	PipelineConfig = config.PipelineConfig
	// Pipeline end-to-end extraction pipeline
	Pipeline = pipeline.Pipeline
	// RunReport outcome of one pipeline run
	RunReport = pipeline.RunReport
	// SnapshotWriter snapshot artifact writer interface
	SnapshotWriter = writer.SnapshotWriter
	// SnapshotReader snapshot artifact reader interface
	SnapshotReader = reader.SnapshotReader
	// SnapshotStorageProvider storage provider interface
	SnapshotStorageProvider = storage.SnapshotStorageProvider
	// ProviderConfig storage provider configuration
	ProviderConfig = storage.ProviderConfig
	// ProviderType storage provider type
	ProviderType = storage.ProviderType
	// Snapshot one extraction run's output
	Snapshot = common.Snapshot
	// SnapshotRecord one video observation inside a snapshot
	SnapshotRecord = common.SnapshotRecord
	// MergeResult history merge outcome
	MergeResult = common.MergeResult
	// RunStatus terminal status of one run
	RunStatus = common.RunStatus
	// AWSConfig AWS specific configuration
	AWSConfig = storage.AWSConfig
	// OSSConfig OSS specific configuration
	OSSConfig = storage.OSSConfig
	// AzureConfig Azure specific configuration
	AzureConfig = storage.AzureConfig
	// LocalFSConfig local filesystem specific configuration
	LocalFSConfig = storage.LocalFSConfig
)

// Re-export constants
const (
	ProviderTypeS3      = storage.ProviderTypeS3
	ProviderTypeOSS     = storage.ProviderTypeOSS
	ProviderTypeAzure   = storage.ProviderTypeAzure
	ProviderTypeLocalFS = storage.ProviderTypeLocalFS

	RunStatusCompleted        = common.RunStatusCompleted
	RunStatusCompletedPartial = common.RunStatusCompletedPartial
	RunStatusFailed           = common.RunStatusFailed
)

// Re-export main functions
var (
	// DefaultConfig creates default configuration
	DefaultConfig = config.DefaultConfig
	// NewDebugConfig creates debug configuration
	NewDebugConfig = config.NewDebugConfig
	// NewPipelineConfig creates pipeline configuration with defaults
	NewPipelineConfig = config.NewPipelineConfig
	// LoadPipelineConfig loads pipeline configuration from a file
	LoadPipelineConfig = config.LoadPipelineConfig
	// NewSnapshotStorageProvider creates storage provider
	NewSnapshotStorageProvider = storage.NewSnapshotStorageProvider
	// NewPipeline creates an extraction pipeline
	NewPipeline = pipeline.New
	// NewSnapshotWriter creates snapshot artifact writer
	NewSnapshotWriter = snapshotwriter.NewSnapshotWriter
	// NewSnapshotReader creates snapshot artifact reader
	NewSnapshotReader = snapshotreader.NewSnapshotReader
)
