package models

import (
	"encoding/json"
	"fmt"
)

// SourceConfig describes one monitored YouTube channel and how its videos
// are published on the destination side. Loaded from the ledger's config
// document and immutable for the duration of a run.
type SourceConfig struct {
	ChannelID string   `json:"channel_id"`
	Tid       int      `json:"tid"`
	Tags      []string `json:"tags"`
}

// Validate fails closed on missing required fields.
func (c SourceConfig) Validate() error {
	if c.ChannelID == "" {
		return fmt.Errorf("source config missing channel_id")
	}
	if c.Tid <= 0 {
		return fmt.Errorf("source config for channel %s missing tid", c.ChannelID)
	}
	return nil
}

// SourceItem is a candidate video discovered in a channel feed.
type SourceItem struct {
	VideoID   string `json:"vid"`
	Title     string `json:"title"`
	Origin    string `json:"origin"`
	CoverURL  string `json:"cover_url"`
	ChannelID string `json:"channel_id"`
}

// Candidate pairs a feed item with the configuration of the channel it
// came from.
type Candidate struct {
	Item   SourceItem
	Config SourceConfig
}

// UploadResult is the structured result embedded in the uploader's output.
type UploadResult struct {
	Data UploadData `json:"data"`
}

// UploadData carries the destination platform's assigned identifiers.
type UploadData struct {
	Aid  int64  `json:"aid"`
	Bvid string `json:"bvid"`
}

// MigrationRecord is written to the migration index exactly once, only
// after a confirmed successful publish. Never mutated afterwards.
type MigrationRecord struct {
	VideoID string        `json:"vid"`
	Title   string        `json:"title"`
	Origin  string        `json:"origin"`
	Result  *UploadResult `json:"ret,omitempty"`
}

// MigrationIndex maps video id to its migration record. Presence of a key
// is the sole truth of "already migrated".
type MigrationIndex map[string]MigrationRecord

// Has reports whether vid has already been migrated.
func (m MigrationIndex) Has(vid string) bool {
	_, ok := m[vid]
	return ok
}

// Add records a completed migration.
func (m MigrationIndex) Add(rec MigrationRecord) {
	m[rec.VideoID] = rec
}

// LedgerState is everything read from the remote ledger at run start.
// Credentials are opaque to the pipeline and round-tripped verbatim.
type LedgerState struct {
	Sources     []SourceConfig
	Credentials json.RawMessage
	Index       MigrationIndex
}
