package models

// SystemStatus is the recorder service snapshot. It has no identity and is always replaced whole.
type SystemStatus struct {
	RecorderRunning bool   `json:"recorder_running"`
	ActiveURLs      int    `json:"active_urls"`
	StorageUsage    string `json:"storage_usage"`
}

// DefaultSystemStatus is what the dashboard shows when the status cannot be fetched.
func DefaultSystemStatus() SystemStatus {
	return SystemStatus{RecorderRunning: false, ActiveURLs: 0, StorageUsage: "0 B"}
}
