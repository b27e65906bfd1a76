// Package services implements the external collaborators of the migration
// pipeline behind narrow interfaces so the orchestration logic is testable
// with fakes.
//
// # Ledger
//
// [GistLedger] stores the run's durable state in a GitHub gist holding three
// documents: source configuration, session credentials, and the migration
// index. Authentication uses a bearer token via [oauth2.StaticTokenSource].
// Writes are full-document overwrites; there is no optimistic concurrency,
// so concurrent runs against the same gist can lose updates. Single-runner
// operation is assumed.
//
// # Catalog
//
// [FeedCatalog] fetches a channel's Atom feed and extracts the video id,
// title, origin URL and thumbnail from the yt/media feed extensions.
//
// # Acquirer and Publisher
//
// [Downloader] wraps yt-dlp and [Uploader] wraps biliup. Both run the tool
// through an [Executor] so tests never spawn processes. Downloader failures
// are classified into a closed set: skip conditions ([SkipError]), a
// retry-next-format condition, and everything else ([FatalAcquireError]).
// Uploader failures and unparsable success output surface as [PublishError].
//
// # Notifier
//
// [PushNotifier] delivers best-effort pushplus notifications. When no token
// is configured a noop implementation is returned. Notification failures
// never abort the pipeline.
package services
