package models

// AnalysisResult is one compliance assessment of a transcript excerpt.
type AnalysisResult struct {
	Timestamp                int64    `json:"timestamp"` // unix millis
	Summary                  string   `json:"summary"`
	SentimentScore           int      `json:"sentimentScore"`
	RiskScore                int      `json:"riskScore"`
	ComplianceIssues         []string `json:"complianceIssues"`
	InvestmentAdviceDetected bool     `json:"investmentAdviceDetected"`
}

// ChartSample is the part of an AnalysisResult retained for the risk/sentiment chart.
type ChartSample struct {
	Time      string `json:"time"`
	Risk      int    `json:"risk"`
	Sentiment int    `json:"sentiment"`
}

// ClampScore keeps a score inside 0..100.
func ClampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

// SessionReport summarizes a monitor session when it ends.
type SessionReport struct {
	SessionID  string          `json:"session_id"`
	StreamerID string          `json:"streamer_id"`
	Name       string          `json:"name"`
	Platform   Platform        `json:"platform"`
	StartedAt  int64           `json:"started_at"`
	EndedAt    int64           `json:"ended_at"`
	Messages   []ChatMessage   `json:"messages"`
	Latest     *AnalysisResult `json:"latest,omitempty"`
	Chart      []ChartSample   `json:"chart"`
}

// RiskAlert is an analysis that crossed the alert threshold.
type RiskAlert struct {
	SessionID    string   `json:"session_id"`
	StreamerID   string   `json:"streamer_id"`
	StreamerName string   `json:"streamer_name"`
	Platform     Platform `json:"platform"`
	RiskScore    int      `json:"risk_score"`
	Summary      string   `json:"summary"`
	Issues       []string `json:"issues"`
	DetectedAt   int64    `json:"detected_at"`
}
