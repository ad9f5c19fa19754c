// Package checkpoint persists the pagination cursor between runs.
//
// Resuming is opt-in: by default each invocation starts from the newest
// page. With resume enabled the driver records {cursor, pages, total_saved}
// after every processed page, written atomically so a crash leaves either
// the previous or the new checkpoint on disk.
package checkpoint
