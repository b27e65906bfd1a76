// Package models defines domain entities for the y2b migration pipeline.
//
// The package contains two categories of types:
//
// 1. Ledger documents: JSON blobs round-tripped through the remote gist
//   - [SourceConfig] : per-channel migration settings (config.json)
//   - [MigrationIndex] / [MigrationRecord] : the dedup index (uploaded_video.json)
//   - [LedgerState] : everything read from the gist in one fetch
//
// 2. Per-run values: produced fresh on every invocation, never persisted directly
//   - [SourceItem] : a candidate video discovered in a channel feed
//   - [Candidate] : a SourceItem paired with its channel's SourceConfig
//   - [UploadResult] : the destination identifiers parsed from uploader output
//
// The migration index is the single source of truth for "already migrated":
// a video id present in the index is never re-acquired or re-published.
package models
