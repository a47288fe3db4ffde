// Package audit records refresh activity in the audit_logs table.
//
// Two kinds of event are kept: the outcome of every coordinator cycle
// (refresh.succeeded, refresh.failed) and every explicit refresh request
// made through the API (refresh.requested). Telemetry values are never
// written; details carry only the bike count, duration and error text.
//
// Writes go through a Journal, which queues entries on a buffered channel
// and writes them serially so that neither a cycle nor a request waits on
// SQLite. When the queue is full the entry is dropped and a warning logged.
//
//	journal := audit.NewJournal(audit.JournalOptions{
//	    Repository: audit.NewSQLiteRepository(db.DB),
//	    EntryID:    "garage",
//	    Next:       metrics,
//	})
//	journal.Start()
//	defer journal.Stop()
//
// The Journal also implements the coordinator's metrics recorder, forwarding
// every call to Next, so it can be slotted in front of the Prometheus
// collectors without the coordinator knowing about it.
package audit
