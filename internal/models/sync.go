package models

import "time"

// SyncSummary is the result of one sync cycle.
//
// Success is false only when the cycle could not run at all (for example the
// store was unreachable); per-message retryable failures leave Success true.
type SyncSummary struct {
	Success     bool      `json:"success"`
	SyncedCount int       `json:"syncedCount"`
	Skipped     bool      `json:"skipped"`
	SkipReason  string    `json:"skipReason,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// SyncState is the process-scoped engine state exposed for display. It is
// never persisted; IsSyncing always starts false after a restart.
type SyncState struct {
	IsSyncing       bool       `json:"isSyncing"`
	LastSyncTime    *time.Time `json:"lastSyncTime,omitempty"`
	AutoSyncEnabled bool       `json:"autoSyncEnabled"`
}
