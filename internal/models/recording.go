package models

// Recording is an archived capture listed by the backend.
type Recording struct {
	ID           string `json:"id"`
	StreamerName string `json:"streamerName"`
	Platform     string `json:"platform"`
	StartTime    string `json:"startTime"`
	Duration     string `json:"duration"`
	Size         string `json:"size"`
	Path         string `json:"path"`
	RiskCount    int    `json:"riskCount"`
}
