package models

// ChatMessage is one transcript line of a monitored stream.
type ChatMessage struct {
	ID               string `json:"id"`
	User             string `json:"user"`
	Text             string `json:"text"`
	Timestamp        int64  `json:"timestamp"` // unix millis
	IsComplianceRisk bool   `json:"isComplianceRisk"`
}
