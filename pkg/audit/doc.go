// Package audit keeps the append-only trail of relay outcomes and user
// feedback.
//
// Every inbound chat request produces exactly one Record once its terminal
// outcome is known. Records go through a Recorder, which queues them for a
// background worker so the request path never waits on storage, and which
// swallows sink failures after logging them.
//
// Backends:
//
//   - FileSink: one human-readable line per record, readable via Tail
//   - SQLiteSink: structured rows with retention pruning
//   - MemorySink: in-process, for tests and throwaway deployments
package audit
