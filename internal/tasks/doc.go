// Package tasks orchestrates one migration run from ledger read to ledger
// write-back.
//
// # Core Operation
//
// [Engine.Run] drives a single scheduled invocation:
//
//  1. Init: fetch source configs, session credentials and the migration
//     index from the remote ledger; materialize credentials on disk for
//     the uploader.
//  2. Selecting: list each channel's current feed, drop already-migrated
//     videos, group the remainder per channel and truncate each group to
//     the per-source quota.
//  3. Processing: for every selected item, acquire the media file and
//     cover, publish to the destination platform, then checkpoint the
//     migration index back to the ledger before moving on. Expected
//     non-migration outcomes (upcoming live streams, paywalled videos,
//     no usable format) skip the item; everything else aborts the run.
//  4. Renewing: refresh the uploader session and write the rotated
//     credentials back to the ledger.
//
// Crash resilience comes from the per-item checkpoint: a run killed
// mid-way loses at most the item in flight, and the next run's selection
// naturally resumes where this one stopped.
//
// # Pacing
//
// Successful publishes are spaced out with a [rate.Limiter] so a large
// backlog does not burst-submit against the destination platform.
package tasks
