package domain

// CheckpointKey names the status row holding the last synced block.
const CheckpointKey = "blockNumber"

// NoCheckpoint is the checkpoint value before any block was attempted.
const NoCheckpoint int64 = -1

// SyncStatus is the read-only view of the sync state.
type SyncStatus struct {
	BlockNumber  int64    `json:"blockNumber"`
	AddressCount int64    `json:"addressCount"`
	FailedCount  int64    `json:"failedCount"`
	Progress     Progress `json:"progress"`
}

// Progress is advisory output of a running forward sync.
type Progress struct {
	Running   bool    `json:"running"`
	Processed int64   `json:"processed"`
	Total     int64   `json:"total"`
	Percent   float64 `json:"percent"`
	Current   int64   `json:"current"`
}
