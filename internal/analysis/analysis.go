// Package analysis scores transcript excerpts for financial-compliance risk using an LLM.
package analysis

import (
	"context"
	"time"

	"github.com/finstream-guard/dashboard/internal/models"
)

// Gateway scores one transcript excerpt for one stream.
type Gateway interface {
	Analyze(ctx context.Context, excerpt, subject string) (models.AnalysisResult, error)
}

// Fallback is stored when an analysis call fails. It never carries over a previous result.
func Fallback(now time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		Timestamp:                now.UnixMilli(),
		Summary:                  "由于错误导致分析失败。",
		SentimentScore:           50,
		RiskScore:                0,
		ComplianceIssues:         []string{},
		InvestmentAdviceDetected: false,
	}
}

// Demo is used when no LLM credentials are configured. It returns a fixed, clearly-labelled result
// so the dashboard stays demonstrable.
type Demo struct {
	now func() time.Time
}

// NewDemo creates the credential-less analyzer.
func NewDemo() *Demo {
	return &Demo{now: time.Now}
}

// Analyze implements Gateway.
func (d *Demo) Analyze(ctx context.Context, excerpt, subject string) (models.AnalysisResult, error) {
	return models.AnalysisResult{
		Timestamp:                d.now().UnixMilli(),
		Summary:                  "未检测到API Key。模拟分析：讨论中检测到高波动性词汇。",
		SentimentScore:           45,
		RiskScore:                75,
		ComplianceIssues:         []string{"缺少API Key", "包含未经证实的声明"},
		InvestmentAdviceDetected: true,
	}, nil
}
