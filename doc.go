// Package channelstats extracts and accumulates public statistics for a
// video channel's uploads.
//
// channelstats walks a channel's full upload listing through its public
// data API, records every video's counters as an immutable snapshot
// artifact in object storage (local filesystem, AWS S3, Azure Blob
// Storage or Alibaba Cloud OSS), and merges each snapshot into a SQLite
// history holding one row per video per observation day.
//
// # Getting started
//
// The best way to get started working with the SDK is to use `go get` to
// add it to your Go dependencies explicitly.
//
//	go get github.com/podpah/channelstats
//
// # Running a pipeline
//
// This example shows how to run one extraction end to end.
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    channelstats "github.com/podpah/channelstats"
//	)
//
//	func main() {
//	    // Configure the pipeline: credentials, target channel, stores
//	    pc := channelstats.NewPipelineConfig().
//	        WithChannel("YOUR_API_KEY", "UCxxxxxxxxxxxxxxxxxxxxxx").
//	        WithLocalSnapshotStore("/data/channelstats").
//	        WithHistoryDB("/data/channelstats/history.db")
//
//	    cfg := channelstats.DefaultConfig().WithDevelopmentLogger()
//	    p, err := channelstats.NewPipeline(pc, cfg)
//	    if err != nil {
//	        log.Fatalf("Failed to create pipeline: %v", err)
//	    }
//	    defer p.Close()
//
//	    report, err := p.Run(context.Background())
//	    if err != nil {
//	        log.Fatalf("Run failed: %v", err)
//	    }
//
//	    fmt.Printf("Run %s finished with status %s: %d records, %d inserted\n",
//	        report.RunID, report.Status, report.Records, report.Merge.Inserted)
//	}
//
// A run truncated by quota exhaustion still persists and merges what it
// fetched; its report carries the completed-partial status.
//
// # Reading snapshots back
//
// Snapshot artifacts are append-only gzipped JSON files laid out as
// snapshots/{day}/{channel_id}/{run_id}-{part}.json.gz. They can be read
// back independently of the pipeline, for instance to re-run a merge.
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//	    "time"
//
//	    channelstats "github.com/podpah/channelstats"
//	)
//
//	func main() {
//	    storeConfig := &channelstats.ProviderConfig{
//	        Type:   channelstats.ProviderTypeS3,
//	        Bucket: "your-bucket-name",
//	        Region: "us-west-2",
//	    }
//
//	    provider, err := channelstats.NewSnapshotStorageProvider(storeConfig)
//	    if err != nil {
//	        log.Fatalf("Failed to create storage provider: %v", err)
//	    }
//
//	    reader := channelstats.NewSnapshotReader(provider, channelstats.DefaultConfig())
//	    defer reader.Close()
//
//	    day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
//	    runs, err := reader.ListRuns(context.Background(), day)
//	    if err != nil {
//	        log.Fatalf("Failed to list runs: %v", err)
//	    }
//
//	    fmt.Printf("Found %d channels with runs on %s\n",
//	        len(runs.Files), day.Format("2006-01-02"))
//	}
//
// # Configuration files
//
// Pipelines can also be configured declaratively from TOML or YAML:
//
//	api-key = "YOUR_API_KEY"
//	channel-id = "UCxxxxxxxxxxxxxxxxxxxxxx"
//	daily-quota = 10000
//	history-db-path = "/data/channelstats/history.db"
//
//	[snapshot-store]
//	type = "s3"
//	region = "us-west-2"
//	bucket = "your-bucket-name"
//
// and loaded with LoadPipelineConfig.
package channelstats
