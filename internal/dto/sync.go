package dto

import (
	"encoding/json"
	"time"
)

// Conflict resolution strategies for sync.
const (
	ResolutionServerWins = "server_wins"
	ResolutionClientWins = "client_wins"
)

// SyncChange is one changed item in either direction.
type SyncChange struct {
	Table     string          `json:"table"`
	ItemID    string          `json:"item_id"`
	Action    string          `json:"action"` // create, update or delete
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SyncRequest represents a bidirectional sync call from a client.
// @Description Request body for bidirectional sync
type SyncRequest struct {
	LastSync   *time.Time   `json:"last_sync,omitempty"`
	Changes    []SyncChange `json:"changes,omitempty"`
	Resolution string       `json:"resolution,omitempty"` // server_wins (default) or client_wins
}

// SyncConflict reports an item changed on both sides and how it was
// resolved.
type SyncConflict struct {
	Table           string    `json:"table"`
	ItemID          string    `json:"item_id"`
	Resolution      string    `json:"resolution"`
	ServerUpdatedAt time.Time `json:"server_updated_at"`
	ClientUpdatedAt time.Time `json:"client_updated_at"`
}

// SyncResponse carries the server's changes and the outcome of applying the
// client's.
// @Description Response body for bidirectional sync
type SyncResponse struct {
	ServerChanges []SyncChange   `json:"server_changes"`
	Conflicts     []SyncConflict `json:"conflicts"`
	AppliedCount  int            `json:"applied_count"`
	SyncTime      time.Time      `json:"sync_time"`
}

// OfflineAction is one queued client action to replay on the server.
type OfflineAction struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

// OfflineQueueRequest represents a batch of queued offline actions.
// @Description Request body for replaying offline actions
type OfflineQueueRequest struct {
	Actions []OfflineAction `json:"actions" validate:"required"`
}

// OfflineActionResult is the per-action outcome of an offline queue replay.
type OfflineActionResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OfflineQueueResponse reports a partial-success replay outcome.
type OfflineQueueResponse struct {
	Results   []OfflineActionResult `json:"results"`
	Processed int                   `json:"processed"`
	Failed    int                   `json:"failed"`
}

// SyncStatusResponse reports a user's sync standing.
// @Description Sync status for the authenticated user
type SyncStatusResponse struct {
	LastSync       *time.Time `json:"last_sync,omitempty"`
	PendingChanges int        `json:"pending_changes"`
	ServerTime     time.Time  `json:"server_time"`
}
